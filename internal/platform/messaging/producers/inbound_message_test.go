package producers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cuenta-expense-bot/internal/domain/shared"
)

type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func producerTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestInboundMessageProducer_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulPublish", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &InboundMessageProducer{
			logger: producerTestLogger(),
			writer: mockWriter,
			topic:  "inbound_messages",
		}

		value := &shared.InboundMessage{
			ThreadID:   "thread-1",
			SenderID:   42,
			MessageID:  "msg-1",
			Text:       "paid 12.50 for lunch",
			ReceivedAt: time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC),
		}
		wantJSON, _ := json.Marshal(value)

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			return string(msgs[0].Key) == "thread-1" && string(msgs[0].Value) == string(wantJSON)
		})).Return(nil).Once()

		err := producer.Publish(ctx, "thread-1", value)

		require.NoError(t, err)
		mockWriter.AssertExpectations(t)
	})

	t.Run("PublishReturnsErrorOnWriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &InboundMessageProducer{
			logger: producerTestLogger(),
			writer: mockWriter,
			topic:  "inbound_messages",
		}

		writerErr := errors.New("kafka write error")
		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerErr).Once()

		err := producer.Publish(ctx, "thread-1", map[string]string{"text": "hi"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), writerErr.Error())
		mockWriter.AssertExpectations(t)
	})

	t.Run("UnmarshalableValueFailsBeforeWrite", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &InboundMessageProducer{
			logger: producerTestLogger(),
			writer: mockWriter,
			topic:  "inbound_messages",
		}

		err := producer.Publish(ctx, "thread-1", make(chan int))

		require.Error(t, err)
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})
}

func TestInboundMessageProducer_Close(t *testing.T) {
	t.Run("SuccessfulClose", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &InboundMessageProducer{
			logger: producerTestLogger(),
			writer: mockWriter,
			topic:  "inbound_messages",
		}

		mockWriter.On("Close").Return(nil).Once()

		require.NoError(t, producer.Close())
		mockWriter.AssertExpectations(t)
	})

	t.Run("CloseReturnsWriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &InboundMessageProducer{
			logger: producerTestLogger(),
			writer: mockWriter,
			topic:  "inbound_messages",
		}

		closeErr := errors.New("close failed")
		mockWriter.On("Close").Return(closeErr).Once()

		err := producer.Close()

		require.Error(t, err)
		assert.Contains(t, err.Error(), closeErr.Error())
	})
}
