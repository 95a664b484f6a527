package conversation

import (
	"context"
)

// Repository is the checkpoint store: a durable snapshot of each thread's
// state keyed by thread id. Save is an atomic single-row upsert; checkpoints
// are never deleted.
type Repository interface {
	Get(ctx context.Context, threadID string) (*State, error)
	Save(ctx context.Context, state *State) error
}

// ErrCheckpointNotFound indicates no checkpoint exists for a thread yet.
type ErrCheckpointNotFound struct {
	ThreadID string
}

func (e ErrCheckpointNotFound) Error() string {
	return "checkpoint not found for thread: " + e.ThreadID
}

// Is matches any ErrCheckpointNotFound when the target carries an empty
// thread id.
func (e ErrCheckpointNotFound) Is(target error) bool {
	t, ok := target.(ErrCheckpointNotFound)
	if !ok {
		return false
	}
	return t.ThreadID == "" || t.ThreadID == e.ThreadID
}
