package retry

import (
	"context"
	"strconv"
	"time"
)

// Repository manages retry job persistence. Enqueue is append-only; ClaimDue
// hands each due job to exactly one caller by stamping a claim token; the
// three Mark operations are the only mutations allowed after creation and
// each requires the claim token that won the job.
type Repository interface {
	Enqueue(ctx context.Context, job *Job) error
	ClaimDue(ctx context.Context, now time.Time, limit int, owner string) ([]*Job, error)
	MarkSucceeded(ctx context.Context, id int64, owner string) error
	MarkRetry(ctx context.Context, id int64, owner string, nextRunAt time.Time, lastError string) error
	MarkExhausted(ctx context.Context, id int64, owner string, lastError string) error
	GetByThreadID(ctx context.Context, threadID string) ([]*Job, error)
}

// ErrJobNotFound indicates a job id that does not exist or is not held under
// the presented claim token.
type ErrJobNotFound struct {
	ID int64
}

func (e ErrJobNotFound) Error() string {
	return "retry job not found or not claimed: " + strconv.FormatInt(e.ID, 10)
}

// Is matches any ErrJobNotFound when the target carries a zero id.
func (e ErrJobNotFound) Is(target error) bool {
	t, ok := target.(ErrJobNotFound)
	if !ok {
		return false
	}
	return t.ID == 0 || t.ID == e.ID
}
