package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuenta-expense-bot/internal/domain/conversation"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestCheckpointRepository_Get(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CheckpointRepository{querier: mock, logger: logger}

	query := `
		SELECT state
		FROM conversation_checkpoints
		WHERE thread_id = \$1
	`

	t.Run("success", func(t *testing.T) {
		state := conversation.NewState("thread-1", time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC))
		state.Phase = conversation.PhaseAwaitingConfirmation
		raw, err := json.Marshal(state)
		require.NoError(t, err)

		mock.ExpectQuery(query).
			WithArgs("thread-1").
			WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow(raw))

		loaded, err := repo.Get(ctx, "thread-1")
		require.NoError(t, err)
		assert.Equal(t, "thread-1", loaded.ThreadID)
		assert.Equal(t, conversation.PhaseAwaitingConfirmation, loaded.Phase)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs("thread-2").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Get(ctx, "thread-2")
		assert.ErrorIs(t, err, conversation.ErrCheckpointNotFound{})
		assert.ErrorIs(t, err, conversation.ErrCheckpointNotFound{ThreadID: "thread-2"})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt state", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs("thread-1").
			WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow([]byte("{not json")))

		_, err := repo.Get(ctx, "thread-1")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode conversation checkpoint")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectQuery(query).
			WithArgs("thread-1").
			WillReturnError(expectedErr)

		_, err := repo.Get(ctx, "thread-1")
		assert.Error(t, err)
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCheckpointRepository_Save(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CheckpointRepository{querier: mock, logger: logger}

	state := conversation.NewState("thread-1", time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC))

	query := `
		INSERT INTO conversation_checkpoints \(thread_id, state, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4\)
		ON CONFLICT \(thread_id\)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(state.ThreadID, pgxmock.AnyArg(), state.CreatedAt, state.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Save(ctx, state)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(state.ThreadID, pgxmock.AnyArg(), state.CreatedAt, state.UpdatedAt).
			WillReturnError(expectedErr)

		err := repo.Save(ctx, state)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save conversation checkpoint")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
