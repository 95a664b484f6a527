package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuenta-expense-bot/internal/domain/conversation"
	"github.com/cuenta-expense-bot/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// CheckpointRepository implements the conversation.Repository interface for PostgreSQL
type CheckpointRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCheckpointRepository creates a new PostgreSQL checkpoint repository
func NewCheckpointRepository(logger *slog.Logger, db *persistence.PostgresDB) conversation.Repository {
	return &CheckpointRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Get loads the durable checkpoint for a thread.
// Returns ErrCheckpointNotFound when the thread has no history yet.
func (r *CheckpointRepository) Get(ctx context.Context, threadID string) (*conversation.State, error) {
	query := `
		SELECT state
		FROM conversation_checkpoints
		WHERE thread_id = $1
	`

	var raw []byte
	err := r.querier.QueryRow(ctx, query, threadID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, conversation.ErrCheckpointNotFound{ThreadID: threadID}
		}
		r.logger.Error("Failed to get conversation checkpoint",
			"thread_id", threadID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get conversation checkpoint: %w", err)
	}

	var state conversation.State
	if err := json.Unmarshal(raw, &state); err != nil {
		r.logger.Error("Failed to decode conversation checkpoint",
			"thread_id", threadID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to decode conversation checkpoint: %w", err)
	}

	return &state, nil
}

// Save upserts the checkpoint in a single atomic statement. A crash between
// turns therefore loses at most the turn in flight, never the checkpoint.
func (r *CheckpointRepository) Save(ctx context.Context, state *conversation.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode conversation checkpoint: %w", err)
	}

	query := `
		INSERT INTO conversation_checkpoints (thread_id, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (thread_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`

	_, err = r.querier.Exec(ctx, query,
		state.ThreadID,
		raw,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save conversation checkpoint",
			"thread_id", state.ThreadID,
			"error", err,
		)
		return fmt.Errorf("failed to save conversation checkpoint: %w", err)
	}

	return nil
}
