package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cuenta-expense-bot/internal/domain/audit"
)

const (
	// AuditCollectionName is the name of the audit trail collection in MongoDB
	AuditCollectionName = "expense_attempts"
)

// AuditRepository implements the audit.Repository interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) audit.Repository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores an audit entry. The trail is append-only; entries are never
// updated or deleted.
func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	collection := r.db.Collection(AuditCollectionName)

	_, err := collection.InsertOne(ctx, entry)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			"attempt_id", entry.AttemptID,
			"thread_id", entry.ThreadID,
			"error", err)
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// GetByThreadID retrieves paginated audit entries for a thread.
// Results are sorted by creation time in descending order (newest first).
func (r *AuditRepository) GetByThreadID(ctx context.Context, threadID string, limit, offset int) ([]*audit.Entry, error) {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"thread_id": threadID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get audit entries",
			"thread_id", threadID,
			"error", err)
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*audit.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode audit entries",
			"thread_id", threadID,
			"error", err)
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	return entries, nil
}

// CountByThreadID returns the total number of audit entries for a thread.
func (r *AuditRepository) CountByThreadID(ctx context.Context, threadID string) (int64, error) {
	collection := r.db.Collection(AuditCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"thread_id": threadID})
	if err != nil {
		r.logger.Error("Failed to count audit entries",
			"thread_id", threadID,
			"error", err)
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}
