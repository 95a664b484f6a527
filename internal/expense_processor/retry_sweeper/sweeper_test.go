package retry_sweeper

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cuenta-expense-bot/internal/config"
	"github.com/cuenta-expense-bot/internal/domain/retry"
)

func newTestSweeper(m *runnerMocks) *Sweeper {
	cfg := &config.SweeperConfig{
		PollingInterval: 10 * time.Millisecond,
		BatchSize:       5,
	}
	sweeper := NewSweeper(cfg, m.jobs, newTestRunner(m), slog.Default())
	sweeper.now = func() time.Time { return sweepNow }
	return sweeper
}

func TestProcessDueJobs_NoJobs(t *testing.T) {
	m := newRunnerMocks()
	sweeper := newTestSweeper(m)
	m.jobs.On("ClaimDue", mock.Anything, sweepNow, 5, sweeper.owner).
		Return([]*retry.Job{}, nil)

	err := sweeper.processDueJobs(context.Background())

	require.NoError(t, err)
	m.poster.AssertNotCalled(t, "PostJournalEntry", mock.Anything, mock.Anything)
}

func TestProcessDueJobs_ClaimFailure(t *testing.T) {
	m := newRunnerMocks()
	sweeper := newTestSweeper(m)
	m.jobs.On("ClaimDue", mock.Anything, sweepNow, 5, sweeper.owner).
		Return(nil, errors.New("postgres down"))

	err := sweeper.processDueJobs(context.Background())

	assert.Error(t, err)
}

func TestProcessDueJobs_RunsEachClaimedJob(t *testing.T) {
	m := newRunnerMocks()
	sweeper := newTestSweeper(m)

	first := queuedJob(t)
	second := queuedJob(t)
	second.ID = 8

	m.jobs.On("ClaimDue", mock.Anything, sweepNow, 5, sweeper.owner).
		Return([]*retry.Job{first, second}, nil)
	m.poster.On("PostJournalEntry", mock.Anything, mock.Anything).Return(postedResult(), nil)
	m.jobs.On("MarkSucceeded", mock.Anything, int64(7), sweeper.owner).Return(nil)
	// One failed settlement must not stop the rest of the batch.
	m.jobs.On("MarkSucceeded", mock.Anything, int64(8), sweeper.owner).
		Return(retry.ErrJobNotFound{ID: 8})
	m.checkpoints.On("Get", mock.Anything, "thread-1").Return(nil, errors.New("postgres down"))

	err := sweeper.processDueJobs(context.Background())

	require.NoError(t, err)
	m.jobs.AssertExpectations(t)
}

func TestNewSweeper_UniqueOwners(t *testing.T) {
	m := newRunnerMocks()
	a := newTestSweeper(m)
	b := newTestSweeper(m)

	assert.NotEmpty(t, a.owner)
	assert.NotEqual(t, a.owner, b.owner)
}
