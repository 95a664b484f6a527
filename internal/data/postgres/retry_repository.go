package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuenta-expense-bot/internal/domain/retry"
	"github.com/cuenta-expense-bot/internal/platform/persistence"
)

// claimLease is how long a claim stays exclusive. A job whose owner died
// mid-run becomes reclaimable once its claimed_at falls behind the lease.
const claimLease = 5 * time.Minute

// RetryRepository implements the retry.Repository interface for PostgreSQL
type RetryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRetryRepository creates a new PostgreSQL retry job repository
func NewRetryRepository(logger *slog.Logger, db *persistence.PostgresDB) retry.Repository {
	return &RetryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Enqueue stores a new pending retry job.
func (r *RetryRepository) Enqueue(ctx context.Context, job *retry.Job) error {
	query := `
		INSERT INTO retry_jobs (thread_id, sender_id, payload, status, attempts, next_run_at, deadline_at, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		job.ThreadID,
		job.SenderID,
		job.Payload,
		job.Status,
		job.Attempts,
		job.NextRunAt,
		job.DeadlineAt,
		job.LastError,
		job.CreatedAt,
	).Scan(&job.ID)

	if err != nil {
		r.logger.Error("Failed to enqueue retry job",
			"thread_id", job.ThreadID,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue retry job: %w", err)
	}

	return nil
}

// ClaimDue atomically claims a batch of due pending jobs for the given
// owner. Unclaimed rows and rows whose claim outlived the lease are eligible;
// a live claim held by another sweeper is not, so a job cannot run twice
// concurrently. FOR UPDATE SKIP LOCKED keeps racing sweepers off the same
// row inside the claiming statement; the claim token guards every later
// mutation.
func (r *RetryRepository) ClaimDue(ctx context.Context, now time.Time, limit int, owner string) ([]*retry.Job, error) {
	query := `
		UPDATE retry_jobs
		SET claimed_by = $1, claimed_at = $2
		WHERE id IN (
			SELECT id
			FROM retry_jobs
			WHERE status = $3 AND next_run_at <= $2
			  AND (claimed_by IS NULL OR claimed_at < $5)
			ORDER BY next_run_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, thread_id, sender_id, payload, status, attempts, next_run_at, deadline_at, claimed_by, claimed_at, last_error, created_at
	`

	staleBefore := now.Add(-claimLease)
	rows, err := r.querier.Query(ctx, query, owner, now, retry.StatusPending, limit, staleBefore)
	if err != nil {
		r.logger.Error("Failed to claim due retry jobs", "error", err)
		return nil, fmt.Errorf("failed to claim due retry jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*retry.Job
	for rows.Next() {
		var job retry.Job
		err := rows.Scan(
			&job.ID,
			&job.ThreadID,
			&job.SenderID,
			&job.Payload,
			&job.Status,
			&job.Attempts,
			&job.NextRunAt,
			&job.DeadlineAt,
			&job.ClaimedBy,
			&job.ClaimedAt,
			&job.LastError,
			&job.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan retry job", "error", err)
			return nil, fmt.Errorf("failed to scan retry job: %w", err)
		}
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over retry jobs", "error", err)
		return nil, fmt.Errorf("error iterating over retry jobs: %w", err)
	}

	return jobs, nil
}

// MarkSucceeded finalizes a claimed job after the entry was posted.
func (r *RetryRepository) MarkSucceeded(ctx context.Context, id int64, owner string) error {
	query := `
		UPDATE retry_jobs
		SET status = $1, claimed_by = NULL, claimed_at = NULL
		WHERE id = $2 AND claimed_by = $3
	`

	result, err := r.querier.Exec(ctx, query, retry.StatusSucceeded, id, owner)
	if err != nil {
		r.logger.Error("Failed to mark retry job succeeded",
			"id", id,
			"error", err,
		)
		return fmt.Errorf("failed to mark retry job succeeded: %w", err)
	}

	if result.RowsAffected() == 0 {
		return retry.ErrJobNotFound{ID: id}
	}

	return nil
}

// MarkRetry releases a claimed job back to pending with a new due time and
// an incremented attempt counter.
func (r *RetryRepository) MarkRetry(ctx context.Context, id int64, owner string, nextRunAt time.Time, lastError string) error {
	query := `
		UPDATE retry_jobs
		SET attempts = attempts + 1, next_run_at = $1, last_error = $2, claimed_by = NULL, claimed_at = NULL
		WHERE id = $3 AND claimed_by = $4
	`

	result, err := r.querier.Exec(ctx, query, nextRunAt, lastError, id, owner)
	if err != nil {
		r.logger.Error("Failed to mark retry job for retry",
			"id", id,
			"error", err,
		)
		return fmt.Errorf("failed to mark retry job for retry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return retry.ErrJobNotFound{ID: id}
	}

	return nil
}

// MarkExhausted parks a claimed job permanently. Exhausted rows are kept for
// manual follow-up.
func (r *RetryRepository) MarkExhausted(ctx context.Context, id int64, owner string, lastError string) error {
	query := `
		UPDATE retry_jobs
		SET status = $1, attempts = attempts + 1, last_error = $2, claimed_by = NULL, claimed_at = NULL
		WHERE id = $3 AND claimed_by = $4
	`

	result, err := r.querier.Exec(ctx, query, retry.StatusExhausted, lastError, id, owner)
	if err != nil {
		r.logger.Error("Failed to mark retry job exhausted",
			"id", id,
			"error", err,
		)
		return fmt.Errorf("failed to mark retry job exhausted: %w", err)
	}

	if result.RowsAffected() == 0 {
		return retry.ErrJobNotFound{ID: id}
	}

	return nil
}

// GetByThreadID lists a thread's retry jobs, newest first.
func (r *RetryRepository) GetByThreadID(ctx context.Context, threadID string) ([]*retry.Job, error) {
	query := `
		SELECT id, thread_id, sender_id, payload, status, attempts, next_run_at, deadline_at, claimed_by, claimed_at, last_error, created_at
		FROM retry_jobs
		WHERE thread_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.querier.Query(ctx, query, threadID)
	if err != nil {
		r.logger.Error("Failed to get retry jobs by thread",
			"thread_id", threadID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get retry jobs by thread: %w", err)
	}
	defer rows.Close()

	var jobs []*retry.Job
	for rows.Next() {
		var job retry.Job
		err := rows.Scan(
			&job.ID,
			&job.ThreadID,
			&job.SenderID,
			&job.Payload,
			&job.Status,
			&job.Attempts,
			&job.NextRunAt,
			&job.DeadlineAt,
			&job.ClaimedBy,
			&job.ClaimedAt,
			&job.LastError,
			&job.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan retry job", "error", err)
			return nil, fmt.Errorf("failed to scan retry job: %w", err)
		}
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over retry jobs: %w", err)
	}

	return jobs, nil
}
