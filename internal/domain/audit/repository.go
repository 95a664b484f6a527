package audit

import "context"

// Repository is the append-only audit trail. Append is the only write;
// reads exist for operational inspection.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	GetByThreadID(ctx context.Context, threadID string, limit, offset int) ([]*Entry, error)
	CountByThreadID(ctx context.Context, threadID string) (int64, error)
}
