package service

import (
	"context"
	"log/slog"

	"github.com/cuenta-expense-bot/internal/domain/shared"
	"github.com/cuenta-expense-bot/internal/platform/messaging/producers"
)

// MessageServiceImpl implements the MessageService interface
type MessageServiceImpl struct {
	producer producers.MessagePublisher
	logger   *slog.Logger
}

// NewMessageService creates a new message ingestion service
func NewMessageService(logger *slog.Logger, producer producers.MessagePublisher) MessageService {
	return &MessageServiceImpl{
		producer: producer,
		logger:   logger,
	}
}

// IngestMessage publishes the message keyed by thread id, so every message
// of a conversation lands on the same partition and preserves arrival order.
func (s *MessageServiceImpl) IngestMessage(ctx context.Context, msg *shared.InboundMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	if err := s.producer.Publish(ctx, msg.ThreadID, msg); err != nil {
		s.logger.Error("Failed to publish inbound message",
			"thread_id", msg.ThreadID,
			"message_id", msg.MessageID,
			"error", err,
		)
		return err
	}

	s.logger.Debug("Published inbound message",
		"thread_id", msg.ThreadID,
		"message_id", msg.MessageID,
	)
	return nil
}
