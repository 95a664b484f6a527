package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuenta-expense-bot/internal/config"
	"github.com/segmentio/kafka-go"
)

type InboundMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// Creates the chat gateway producer and ensures the inbound topic exists.
// Messages are keyed by thread id and hashed to a partition so that every
// message of a conversation lands on the same partition in arrival order.
func NewInboundMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*InboundMessageProducer, error) {
	if cfg.MessageTopic == "" {
		return nil, fmt.Errorf("kafka message topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for chat gateway producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.MessageTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure message topic %s exists for chat gateway producer: %w", cfg.MessageTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.MessageTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false, // Synchronous writes keep per-thread order
		WriteTimeout: cfg.MaxWait,
	}

	return &InboundMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.MessageTopic,
	}, nil
}

func (p *InboundMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for chat gateway producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message via chat gateway producer",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via chat gateway producer: %w", p.topic, err)
	}

	p.logger.Debug("Published message via chat gateway producer",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *InboundMessageProducer) Close() error {
	p.logger.Info("Closing chat gateway Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close chat gateway kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
