package retry_sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuenta-expense-bot/internal/domain/audit"
	"github.com/cuenta-expense-bot/internal/domain/conversation"
	"github.com/cuenta-expense-bot/internal/domain/expense"
	"github.com/cuenta-expense-bot/internal/domain/retry"
	"github.com/cuenta-expense-bot/internal/domain/shared"
	"github.com/cuenta-expense-bot/internal/platform/chat"
)

// EntryPoster submits a balanced journal entry to the accounting backend.
type EntryPoster interface {
	PostJournalEntry(ctx context.Context, payload *expense.JournalEntryPayload) (*expense.JournalEntryResult, error)
}

// JobRunner redrives one claimed retry job: it re-posts the stored payload
// and settles the job as succeeded, rescheduled, or exhausted. Every outcome
// is audited and the user is told when the job leaves the queue.
type JobRunner struct {
	logger      *slog.Logger
	jobs        retry.Repository
	checkpoints conversation.Repository
	auditLog    audit.Repository
	notifier    chat.Notifier
	poster      EntryPoster
	baseBackoff time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewJobRunner(
	logger *slog.Logger,
	jobs retry.Repository,
	checkpoints conversation.Repository,
	auditLog audit.Repository,
	notifier chat.Notifier,
	poster EntryPoster,
	baseBackoff time.Duration,
	maxAttempts int,
) *JobRunner {
	return &JobRunner{
		logger:      logger,
		jobs:        jobs,
		checkpoints: checkpoints,
		auditLog:    auditLog,
		notifier:    notifier,
		poster:      poster,
		baseBackoff: baseBackoff,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Run processes one claimed job. Errors are settled into the job row; a
// returned error means the settlement itself failed and the claim will
// expire with the sweeper instance.
func (r *JobRunner) Run(ctx context.Context, job *retry.Job, owner string) error {
	logger := r.logger.With("job_id", job.ID, "thread_id", job.ThreadID, "attempts", job.Attempts)

	now := r.now().UTC()
	payload, decodeErr := job.DecodePayload()

	if job.Expired(now) {
		reason := "retry deadline elapsed"
		if job.LastError != "" {
			reason = fmt.Sprintf("retry deadline elapsed, last error: %s", job.LastError)
		}
		return r.exhaust(ctx, logger, job, owner, payload, reason)
	}
	if job.Attempts >= r.maxAttempts {
		return r.exhaust(ctx, logger, job, owner, payload,
			fmt.Sprintf("gave up after %d attempts, last error: %s", job.Attempts, job.LastError))
	}

	if decodeErr != nil {
		return r.exhaust(ctx, logger, job, owner, nil, fmt.Sprintf("stored payload is unreadable: %v", decodeErr))
	}

	result, postErr := r.poster.PostJournalEntry(ctx, payload)

	switch {
	case postErr == nil:
		return r.succeed(ctx, logger, job, owner, payload, result)

	case shared.IsTerminal(postErr):
		// The backend will never accept this payload; retrying cannot fix
		// it, so the job is parked immediately.
		return r.exhaust(ctx, logger, job, owner, payload, shared.TerminalReason(postErr))

	default:
		nextRunAt := now.Add(r.backoff(job.Attempts))
		if nextRunAt.After(job.DeadlineAt) {
			nextRunAt = job.DeadlineAt
		}
		if err := r.jobs.MarkRetry(ctx, job.ID, owner, nextRunAt, postErr.Error()); err != nil {
			logger.Error("Failed to reschedule retry job", "error", err)
			return fmt.Errorf("failed to reschedule retry job %d: %w", job.ID, err)
		}
		logger.Warn("Retry attempt failed, rescheduled",
			"next_run_at", nextRunAt,
			"error", postErr,
		)
		return nil
	}
}

func (r *JobRunner) succeed(ctx context.Context, logger *slog.Logger, job *retry.Job, owner string, payload *expense.JournalEntryPayload, result *expense.JournalEntryResult) error {
	if err := r.jobs.MarkSucceeded(ctx, job.ID, owner); err != nil {
		logger.Error("Failed to mark retry job succeeded", "error", err)
		return fmt.Errorf("failed to mark retry job %d succeeded: %w", job.ID, err)
	}

	r.updateCheckpoint(ctx, logger, job.ThreadID, result)
	r.appendAudit(ctx, logger, job, payload, audit.StatusPosted, "journal entry posted after retry", result.DocumentID)
	r.notify(ctx, logger, job.ThreadID, fmt.Sprintf(
		"Your queued expense was posted: journal entry %s (voucher %s) dated %s.",
		result.DocumentID, result.VoucherNo, result.PostingDate.Format("2006-01-02")))

	logger.Info("Retry job succeeded", "document_id", result.DocumentID)
	return nil
}

func (r *JobRunner) exhaust(ctx context.Context, logger *slog.Logger, job *retry.Job, owner string, payload *expense.JournalEntryPayload, reason string) error {
	if err := r.jobs.MarkExhausted(ctx, job.ID, owner, reason); err != nil {
		logger.Error("Failed to mark retry job exhausted", "error", err)
		return fmt.Errorf("failed to mark retry job %d exhausted: %w", job.ID, err)
	}

	r.appendAudit(ctx, logger, job, payload, audit.StatusFailed, reason, "")
	r.notify(ctx, logger, job.ThreadID,
		"I could not post your confirmed expense: "+reason+
			"\nIt was NOT recorded. Please re-submit it once the backend is healthy.")

	logger.Warn("Retry job exhausted", "reason", reason)
	return nil
}

// updateCheckpoint records the posting result on the thread so a later
// conversation turn can refer to it. Best effort: the job outcome stands even
// if the checkpoint update fails.
func (r *JobRunner) updateCheckpoint(ctx context.Context, logger *slog.Logger, threadID string, result *expense.JournalEntryResult) {
	state, err := r.checkpoints.Get(ctx, threadID)
	if err != nil {
		if !errors.Is(err, conversation.ErrCheckpointNotFound{}) {
			logger.Error("Failed to load checkpoint after retry success", "error", err)
		}
		return
	}

	state.LastResult = result
	state.UpdatedAt = r.now().UTC()
	if err := r.checkpoints.Save(ctx, state); err != nil {
		logger.Error("Failed to save checkpoint after retry success", "error", err)
	}
}

// appendAudit records a terminal job outcome. The latency spans from the
// moment the user confirmed (the job was enqueued) to the settlement.
func (r *JobRunner) appendAudit(ctx context.Context, logger *slog.Logger, job *retry.Job, payload *expense.JournalEntryPayload, status audit.Status, resolution string, documentID string) {
	now := r.now().UTC()
	latency := now.Sub(job.CreatedAt).Milliseconds()
	entry := &audit.Entry{
		AttemptID:  audit.NewAttemptID(job.ThreadID, now),
		ThreadID:   job.ThreadID,
		SenderID:   job.SenderID,
		Status:     status,
		Resolution: resolution,
		Preview:    payloadPreview(payload),
		DocumentID: documentID,
		LatencyMS:  &latency,
		CreatedAt:  now,
	}
	if err := r.auditLog.Append(ctx, entry); err != nil {
		logger.Error("Failed to append audit entry", "status", string(status), "error", err)
	}
}

// payloadPreview rebuilds the preview shape the engine audits from the wire
// payload stored on the job.
func payloadPreview(p *expense.JournalEntryPayload) map[string]interface{} {
	if p == nil {
		return nil
	}
	var amountMinor int64
	preview := map[string]interface{}{
		"currency":     p.Currency,
		"posting_date": p.PostingDate,
		"narration":    p.Remark,
	}
	for _, row := range p.Rows {
		if row.DebitMinor > 0 {
			amountMinor += row.DebitMinor
			preview["debit_account"] = row.Account
		}
		if row.CreditMinor > 0 {
			preview["credit_account"] = row.Account
		}
	}
	preview["amount"] = expense.FormatMinor(amountMinor)
	return preview
}

func (r *JobRunner) notify(ctx context.Context, logger *slog.Logger, threadID, text string) {
	if err := r.notifier.SendMessage(ctx, threadID, text); err != nil {
		logger.Error("Failed to send retry notification", "error", err)
	}
}

// backoff doubles the base delay per attempt already made.
func (r *JobRunner) backoff(attempts int) time.Duration {
	if attempts > 20 {
		attempts = 20
	}
	return r.baseBackoff << uint(attempts)
}
