package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cuenta-expense-bot/internal/domain/shared"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolTurnService runs turns on a bounded worker pool while keeping a
// strict invariant: turns for the same thread never run concurrently. The
// topic already delivers a thread's messages in order from one partition;
// the per-thread lock extends that guarantee across the pool.
type WorkerPoolTurnService struct {
	baseService TurnService
	pool        *ants.Pool
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolTurnService(
	baseService TurnService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolTurnService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolTurnService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		locks:       make(map[string]*threadLock),
	}, nil
}

// HandleTurn submits the turn to the worker pool and waits for its result.
func (s *WorkerPoolTurnService) HandleTurn(ctx context.Context, msg *shared.InboundMessage) error {
	logger := s.logger
	if msg.CorrelationID != "" {
		logger = s.logger.With("correlation_id", msg.CorrelationID)
	}

	logger.Debug("Submitting turn to worker pool",
		"thread_id", msg.ThreadID,
		"message_id", msg.MessageID,
	)

	resultChan := make(chan error, 1)
	msgCopy := *msg

	err := s.pool.Submit(func() {
		lock := s.acquire(msgCopy.ThreadID)
		defer s.release(msgCopy.ThreadID, lock)

		resultChan <- s.baseService.HandleTurn(ctx, &msgCopy)
		close(resultChan)
	})
	if err != nil {
		logger.Error("Failed to submit turn to worker pool",
			"thread_id", msg.ThreadID,
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// acquire takes the lock that serializes a thread's turns, creating it on
// first use.
func (s *WorkerPoolTurnService) acquire(threadID string) *threadLock {
	s.mu.Lock()
	lock, ok := s.locks[threadID]
	if !ok {
		lock = &threadLock{}
		s.locks[threadID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// release drops the thread lock and removes the map entry once no turn is
// using or waiting on it.
func (s *WorkerPoolTurnService) release(threadID string, lock *threadLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, threadID)
	}
	s.mu.Unlock()
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolTurnService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolTurnService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolTurnService) Capacity() int {
	return s.pool.Cap()
}
