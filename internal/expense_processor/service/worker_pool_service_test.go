package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuenta-expense-bot/internal/domain/shared"
)

// recordingService tracks concurrent executions per thread.
type recordingService struct {
	mu        sync.Mutex
	active    map[string]int
	maxActive map[string]int
	handled   int
	delay     time.Duration
	err       error
}

func newRecordingService(delay time.Duration) *recordingService {
	return &recordingService{
		active:    make(map[string]int),
		maxActive: make(map[string]int),
		delay:     delay,
	}
}

func (s *recordingService) HandleTurn(ctx context.Context, msg *shared.InboundMessage) error {
	s.mu.Lock()
	s.active[msg.ThreadID]++
	if s.active[msg.ThreadID] > s.maxActive[msg.ThreadID] {
		s.maxActive[msg.ThreadID] = s.active[msg.ThreadID]
	}
	s.mu.Unlock()

	time.Sleep(s.delay)

	s.mu.Lock()
	s.active[msg.ThreadID]--
	s.handled++
	s.mu.Unlock()
	return s.err
}

func message(threadID, messageID string) *shared.InboundMessage {
	return &shared.InboundMessage{
		ThreadID:  threadID,
		SenderID:  42,
		MessageID: messageID,
		Text:      "paid 12.50 for lunch",
	}
}

func TestWorkerPoolTurnService_HandleTurn(t *testing.T) {
	base := newRecordingService(0)
	svc, err := NewWorkerPoolTurnService(base, WorkerPoolConfig{Size: 4}, slog.Default())
	require.NoError(t, err)
	defer svc.Shutdown()

	require.NoError(t, svc.HandleTurn(context.Background(), message("thread-1", "msg-1")))
	assert.Equal(t, 1, base.handled)
}

func TestWorkerPoolTurnService_PropagatesError(t *testing.T) {
	base := newRecordingService(0)
	base.err = errors.New("postgres down")
	svc, err := NewWorkerPoolTurnService(base, WorkerPoolConfig{Size: 4}, slog.Default())
	require.NoError(t, err)
	defer svc.Shutdown()

	err = svc.HandleTurn(context.Background(), message("thread-1", "msg-1"))
	assert.EqualError(t, err, "postgres down")
}

func TestWorkerPoolTurnService_SerializesSameThread(t *testing.T) {
	base := newRecordingService(20 * time.Millisecond)
	svc, err := NewWorkerPoolTurnService(base, WorkerPoolConfig{Size: 8}, slog.Default())
	require.NoError(t, err)
	defer svc.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.HandleTurn(context.Background(), message("thread-1", "msg"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, base.handled)
	assert.Equal(t, 1, base.maxActive["thread-1"])
	// The lock entry is dropped once the last turn releases it.
	svc.mu.Lock()
	assert.Empty(t, svc.locks)
	svc.mu.Unlock()
}

func TestWorkerPoolTurnService_DistinctThreadsRunConcurrently(t *testing.T) {
	base := newRecordingService(50 * time.Millisecond)
	svc, err := NewWorkerPoolTurnService(base, WorkerPoolConfig{Size: 8}, slog.Default())
	require.NoError(t, err)
	defer svc.Shutdown()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		threadID := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.HandleTurn(context.Background(), message(threadID, "msg"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, base.handled)
	// Serial execution would take at least 200ms.
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestWorkerPoolTurnService_Capacity(t *testing.T) {
	svc, err := NewWorkerPoolTurnService(newRecordingService(0), WorkerPoolConfig{Size: 3}, slog.Default())
	require.NoError(t, err)
	defer svc.Shutdown()

	assert.Equal(t, 3, svc.Capacity())
	assert.Zero(t, svc.Running())
}
