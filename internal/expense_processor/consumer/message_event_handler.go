package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuenta-expense-bot/internal/domain/shared"
	"github.com/cuenta-expense-bot/internal/expense_processor/service"
	"github.com/cuenta-expense-bot/internal/platform/messaging/producers"
)

// MessageEventHandler handles incoming chat messages from Kafka
type MessageEventHandler struct {
	turnService service.TurnService
	producer    producers.DeadLetterPublisher
	logger      *slog.Logger
}

// NewMessageEventHandler creates a new handler
func NewMessageEventHandler(
	logger *slog.Logger,
	turnService service.TurnService,
	producer producers.DeadLetterPublisher,
) *MessageEventHandler {
	return &MessageEventHandler{
		turnService: turnService,
		producer:    producer,
		logger:      logger,
	}
}

// HandleMessage processes Kafka messages. Malformed messages go to the DLQ;
// processing failures are returned uncommitted so Kafka redelivers them.
func (h *MessageEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var msg shared.InboundMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal inbound message from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	if err := msg.Validate(); err != nil {
		invalidMsg := fmt.Sprintf("Inbound message failed validation: %s", err.Error())
		h.logger.Error(invalidMsg, "message_key", string(key))

		if h.producer != nil {
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, invalidMsg); dlqErr == nil {
				return nil
			}
		}
		return fmt.Errorf("inbound message failed validation: %w", err)
	}

	logger := h.logger
	if msg.CorrelationID != "" {
		logger = h.logger.With("correlation_id", msg.CorrelationID)
	}

	logger.Info("Received chat message for processing",
		"thread_id", msg.ThreadID,
		"message_id", msg.MessageID,
	)

	if err := h.turnService.HandleTurn(ctx, &msg); err != nil {
		logger.Error("Failed to process chat message",
			"thread_id", msg.ThreadID,
			"message_id", msg.MessageID,
			"error", err,
		)
		return fmt.Errorf("processing message %s for thread %s failed: %w", msg.MessageID, msg.ThreadID, err)
	}

	logger.Info("Successfully processed chat message", "thread_id", msg.ThreadID, "message_id", msg.MessageID)
	return nil // Success, commit offset
}
