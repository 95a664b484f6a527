// Package retry_sweeper drives the durable retry queue: it periodically
// claims due jobs and redrives their journal entry payloads against the
// accounting backend with bounded exponential backoff.
package retry_sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuenta-expense-bot/internal/config"
	"github.com/cuenta-expense-bot/internal/domain/retry"
)

// Sweeper polls the retry store for due jobs. Claims carry this instance's
// owner token, so multiple sweepers can run without redriving the same job.
type Sweeper struct {
	jobs         retry.Repository
	runner       *JobRunner
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
	owner        string
	now          func() time.Time
}

func NewSweeper(
	cfg *config.SweeperConfig,
	jobs retry.Repository,
	runner *JobRunner,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		jobs:         jobs,
		runner:       runner,
		logger:       logger,
		pollInterval: cfg.PollingInterval,
		batchSize:    cfg.BatchSize,
		owner:        uuid.New().String(),
		now:          time.Now,
	}
}

// Start begins polling until context is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting retry sweeper",
		"poll_interval", s.pollInterval.String(),
		"batch_size", s.batchSize,
		"owner", s.owner,
	)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Retry sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			s.logger.Debug("Retry sweeper tick: processing due jobs")
			if err := s.processDueJobs(ctx); err != nil {
				s.logger.Error("Error during batch processing of retry jobs", "error", err)
			}
		}
	}
}

func (s *Sweeper) processDueJobs(ctx context.Context) error {
	jobs, err := s.jobs.ClaimDue(ctx, s.now().UTC(), s.batchSize, s.owner)
	if err != nil {
		return fmt.Errorf("failed to claim due retry jobs: %w", err)
	}

	if len(jobs) == 0 {
		s.logger.Debug("No due retry jobs found.")
		return nil
	}

	s.logger.Info("Claimed due retry jobs", "count", len(jobs))

	for _, job := range jobs {
		if err := s.runner.Run(ctx, job, s.owner); err != nil {
			s.logger.Error("Failed to settle retry job",
				"job_id", job.ID, "thread_id", job.ThreadID, "error", err,
			)
		}
	}
	return nil
}
