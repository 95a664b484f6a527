// Package catalog models the chart-of-accounts snapshot the resolver matches
// against. The snapshot is a value object carrying its fetch timestamp; it is
// passed by reference into the resolver rather than accessed as ambient
// state.
package catalog

import "time"

// Account is one chart-of-accounts entry. Group accounts structure the chart
// and must never be posted to.
type Account struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	IsGroup bool     `json:"is_group"`
}

// Snapshot is an immutable view of the chart of accounts at FetchedAt.
// Account order is the catalog insertion order and is the resolver's
// tie-break.
type Snapshot struct {
	Accounts  []Account
	FetchedAt time.Time
}

// Empty reports whether the snapshot carries no accounts.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Accounts) == 0
}

// Stale reports whether the snapshot is older than ttl at the given instant.
func (s *Snapshot) Stale(now time.Time, ttl time.Duration) bool {
	if s == nil {
		return true
	}
	return now.Sub(s.FetchedAt) > ttl
}

// Lookup returns the account with the given code, or nil.
func (s *Snapshot) Lookup(code string) *Account {
	if s == nil {
		return nil
	}
	for i := range s.Accounts {
		if s.Accounts[i].Code == code {
			return &s.Accounts[i]
		}
	}
	return nil
}
