package service

import (
	"context"
	"log/slog"

	"github.com/cuenta-expense-bot/internal/domain/audit"
	"github.com/cuenta-expense-bot/internal/domain/retry"
)

// InspectionServiceImpl implements the InspectionService interface
type InspectionServiceImpl struct {
	auditRepo audit.Repository
	retryRepo retry.Repository
	logger    *slog.Logger
}

// NewInspectionService creates a new inspection service
func NewInspectionService(logger *slog.Logger, auditRepo audit.Repository, retryRepo retry.Repository) InspectionService {
	return &InspectionServiceImpl{
		auditRepo: auditRepo,
		retryRepo: retryRepo,
		logger:    logger,
	}
}

// ListAttempts returns one page of a thread's audit trail plus the total
// entry count for pagination.
func (s *InspectionServiceImpl) ListAttempts(ctx context.Context, threadID string, page, perPage int) ([]*audit.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.auditRepo.GetByThreadID(ctx, threadID, perPage, offset)
	if err != nil {
		s.logger.Error("Failed to list audit entries", "thread_id", threadID, "error", err)
		return nil, 0, err
	}

	total, err := s.auditRepo.CountByThreadID(ctx, threadID)
	if err != nil {
		s.logger.Error("Failed to count audit entries", "thread_id", threadID, "error", err)
		return nil, 0, err
	}

	return entries, total, nil
}

// ListRetryJobs returns a thread's retry jobs, newest first.
func (s *InspectionServiceImpl) ListRetryJobs(ctx context.Context, threadID string) ([]*retry.Job, error) {
	jobs, err := s.retryRepo.GetByThreadID(ctx, threadID)
	if err != nil {
		s.logger.Error("Failed to list retry jobs", "thread_id", threadID, "error", err)
		return nil, err
	}
	return jobs, nil
}
