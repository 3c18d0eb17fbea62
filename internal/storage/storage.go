// Package storage defines the item store interface and its implementations.
package storage

import (
	"context"
	"time"

	"newsbuzz/internal/model"
)

// Listing bounds for Query.
const (
	DefaultLimit = 30
	MaxLimit     = 100
)

// Query selects stored items, newest first.
type Query struct {
	Category string // matched case-insensitively; empty means all
	Limit    int
	Offset   int
}

// CategoryCount is the number of stored items in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Storage is the interface for all persistence operations.
type Storage interface {
	// InsertIfAbsent stores item unless its dedup key is already present.
	// A uniqueness conflict is reported as (false, nil).
	InsertIfAbsent(ctx context.Context, item *model.Item) (bool, error)
	// InsertBatch stores items in one transaction and reports, per item,
	// whether it was inserted.
	InsertBatch(ctx context.Context, items []model.Item) ([]bool, error)
	Exists(ctx context.Context, dedupKey string) (bool, error)

	Query(ctx context.Context, q Query) ([]model.Item, error)
	Count(ctx context.Context, category string) (int, error)
	Categories(ctx context.Context) ([]CategoryCount, error)

	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// Normalize applies the listing defaults and bounds to q.
func (q Query) Normalize() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
