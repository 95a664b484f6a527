package audit

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the auditable dispositions of an expense attempt.
type Status string

const (
	StatusPreviewed Status = "previewed"
	StatusConfirmed Status = "confirmed"
	StatusPosted    Status = "posted"
	StatusFailed    Status = "failed"
	StatusEdited    Status = "edited"
	StatusCancelled Status = "cancelled"
	StatusRetrying  Status = "retrying"
)

var threadSlugPattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Entry is one append-only audit record. Every attempt, edit, retry, and
// cancellation writes exactly one entry; historical rows are never mutated.
type Entry struct {
	AttemptID  string                 `json:"attempt_id" bson:"attempt_id"`
	ThreadID   string                 `json:"thread_id" bson:"thread_id"`
	SenderID   int64                  `json:"sender_id" bson:"sender_id"`
	MessageID  string                 `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Status     Status                 `json:"status" bson:"status"`
	Resolution string                 `json:"resolution" bson:"resolution"`
	Preview    map[string]interface{} `json:"preview,omitempty" bson:"preview,omitempty"`
	DocumentID string                 `json:"document_id,omitempty" bson:"document_id,omitempty"`
	LatencyMS  *int64                 `json:"latency_ms,omitempty" bson:"latency_ms,omitempty"`
	CreatedAt  time.Time              `json:"created_at" bson:"created_at"`
}

// NewAttemptID returns a thread-aware attempt identifier: a slug of the
// thread id, a timestamp, and a short random suffix.
func NewAttemptID(threadID string, now time.Time) string {
	slug := threadSlugPattern.ReplaceAllString(threadID, "-")
	if slug == "" || slug == "-" {
		slug = "thread"
	}
	suffix := uuid.New().String()[:6]
	return slug + "-" + now.UTC().Format("20060102150405") + "-" + suffix
}
