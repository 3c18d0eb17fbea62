// Package dedup decides whether a dedup key is new to the store.
//
// The gate is a read-side optimisation: it lets the pipeline skip known
// items before doing any image lookups. Uniqueness itself is enforced by
// the store's insert path.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
)

// Lookup is the store query behind the gate.
type Lookup interface {
	Exists(ctx context.Context, dedupKey string) (bool, error)
}

// Cache is an optional seen-set consulted before the store.
type Cache interface {
	Seen(ctx context.Context, dedupKey string) (bool, error)
	Remember(ctx context.Context, dedupKeys ...string) error
}

// Gate answers is-new queries for dedup keys.
type Gate struct {
	store Lookup
	cache Cache
	log   *slog.Logger
}

// New creates a Gate. cache may be nil.
func New(store Lookup, cache Cache, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Gate{store: store, cache: cache, log: log}
}

// IsNew reports whether no stored item has the given key.
// Cache failures are logged and ignored; store failures are returned.
func (g *Gate) IsNew(ctx context.Context, key string) (bool, error) {
	if g.cache != nil {
		seen, err := g.cache.Seen(ctx, key)
		switch {
		case err != nil:
			g.log.Warn("dedup cache lookup failed", "error", err)
		case seen:
			return false, nil
		}
	}

	exists, err := g.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check dedup key: %w", err)
	}
	if exists {
		g.Remember(ctx, key)
	}
	return !exists, nil
}

// Remember records keys that are now stored.
func (g *Gate) Remember(ctx context.Context, keys ...string) {
	if g.cache == nil || len(keys) == 0 {
		return
	}
	if err := g.cache.Remember(ctx, keys...); err != nil {
		g.log.Warn("dedup cache update failed", "keys", len(keys), "error", err)
	}
}
