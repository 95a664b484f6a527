package retry

import (
	"encoding/json"
	"time"

	"github.com/cuenta-expense-bot/internal/domain/expense"
)

// Status tracks a retry job through its lifecycle. Exhausted rows are
// retained for manual follow-up, never deleted.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusExhausted Status = "EXHAUSTED"
)

// Job is a durable record of a confirmed-but-unposted journal entry. The
// state machine creates it on the first retryable failure; after that only
// the sweeper mutates it, and only through the repository's claim-guarded
// operations.
type Job struct {
	ID         int64           `json:"id"`
	ThreadID   string          `json:"thread_id"`
	SenderID   int64           `json:"sender_id"`
	Payload    json.RawMessage `json:"payload"`
	Status     Status          `json:"status"`
	Attempts   int             `json:"attempts"`
	NextRunAt  time.Time       `json:"next_run_at"`
	DeadlineAt time.Time       `json:"deadline_at"`
	ClaimedBy  *string         `json:"claimed_by,omitempty"`
	ClaimedAt  *time.Time      `json:"claimed_at,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewJob builds a pending job for a payload whose first posting attempt
// failed with a retryable error. The job becomes due immediately and its
// total queued lifetime is bounded by deadline.
func NewJob(threadID string, senderID int64, payload *expense.JournalEntryPayload, now time.Time, deadline time.Duration) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ThreadID:   threadID,
		SenderID:   senderID,
		Payload:    body,
		Status:     StatusPending,
		Attempts:   0,
		NextRunAt:  now,
		DeadlineAt: now.Add(deadline),
		CreatedAt:  now,
	}, nil
}

// DecodePayload unmarshals the serialized journal entry payload.
func (j *Job) DecodePayload() (*expense.JournalEntryPayload, error) {
	var payload expense.JournalEntryPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Expired reports whether the retry deadline has elapsed.
func (j *Job) Expired(now time.Time) bool {
	return !now.Before(j.DeadlineAt)
}
