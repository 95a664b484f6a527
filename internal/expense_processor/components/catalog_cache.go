package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuenta-expense-bot/internal/domain/catalog"
)

// CatalogSource fetches the chart of accounts from the accounting backend.
type CatalogSource interface {
	FetchChartOfAccounts(ctx context.Context) (*catalog.Snapshot, error)
}

// CatalogCache serves the chart-of-accounts snapshot with a refresh TTL.
// When a refresh fails and a previous snapshot exists, the stale snapshot is
// served so account resolution keeps working through backend outages.
type CatalogCache struct {
	mu       sync.RWMutex
	source   CatalogSource
	logger   *slog.Logger
	ttl      time.Duration
	snapshot *catalog.Snapshot
	now      func() time.Time
}

func NewCatalogCache(logger *slog.Logger, source CatalogSource, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		source: source,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Snapshot returns a fresh snapshot, refreshing from the source when the
// cached one has aged past the TTL.
func (c *CatalogCache) Snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	c.mu.RLock()
	cached := c.snapshot
	c.mu.RUnlock()

	now := c.now()
	if cached != nil && !cached.Stale(now, c.ttl) {
		return cached, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if c.snapshot != nil && !c.snapshot.Stale(c.now(), c.ttl) {
		return c.snapshot, nil
	}

	fresh, err := c.source.FetchChartOfAccounts(ctx)
	if err != nil {
		if c.snapshot != nil {
			c.logger.Warn("Failed to refresh chart of accounts, serving stale snapshot",
				"fetched_at", c.snapshot.FetchedAt,
				"error", err,
			)
			return c.snapshot, nil
		}
		return nil, fmt.Errorf("failed to fetch chart of accounts: %w", err)
	}

	c.snapshot = fresh
	c.logger.Info("Refreshed chart of accounts", "accounts", len(fresh.Accounts))
	return fresh, nil
}
