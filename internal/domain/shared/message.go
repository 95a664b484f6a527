package shared

import (
	"errors"
	"time"
)

var (
	ErrEmptyThreadID = errors.New("thread id cannot be empty")
	ErrEmptyText     = errors.New("message text cannot be empty")
)

// InboundMessage is the wire format for one chat message travelling from the
// gateway to the expense processor. Messages are keyed by thread id on the
// topic so all turns for a thread land on the same partition in arrival order.
type InboundMessage struct {
	ThreadID      string    `json:"thread_id"`
	SenderID      int64     `json:"sender_id"`
	MessageID     string    `json:"message_id"`
	Text          string    `json:"text"`
	CorrelationID string    `json:"correlation_id"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Validate checks the fields the processor cannot work without.
func (m *InboundMessage) Validate() error {
	if m.ThreadID == "" {
		return ErrEmptyThreadID
	}
	if m.Text == "" {
		return ErrEmptyText
	}
	return nil
}
