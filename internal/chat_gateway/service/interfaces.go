package service

import (
	"context"

	"github.com/cuenta-expense-bot/internal/domain/audit"
	"github.com/cuenta-expense-bot/internal/domain/retry"
	"github.com/cuenta-expense-bot/internal/domain/shared"
)

// MessageService accepts inbound chat messages and hands them to the
// processing pipeline.
type MessageService interface {
	IngestMessage(ctx context.Context, msg *shared.InboundMessage) error
}

// InspectionService exposes a thread's audit trail and retry queue for
// operational inspection.
type InspectionService interface {
	ListAttempts(ctx context.Context, threadID string, page, perPage int) ([]*audit.Entry, int64, error)
	ListRetryJobs(ctx context.Context, threadID string) ([]*retry.Job, error)
}
