// Package cache provides a TTL blob store abstraction and a typed read-through loader
// that coalesces concurrent loads for the same key using singleflight.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoaderCache is a typed read-through cache over a Store. Values are stored as JSON with a
// fixed TTL. On miss the value is loaded via a callback; concurrent misses for the same key
// share one load through singleflight.
// Store failures and undecodable entries are logged and treated as misses; the loader is
// the source of truth.
type LoaderCache[V any] struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
}

// NewLoaderCache creates a loader cache writing entries to store with the given TTL.
func NewLoaderCache[V any](store Store, ttl time.Duration) *LoaderCache[V] {
	return &LoaderCache[V]{store: store, ttl: ttl}
}

// GetWithStats returns the value for key, loading and caching it on miss, and reports whether
// the value came from the cache (hit) so callers can record metrics.
// The shared load runs detached from the first caller's cancellation, since other callers may
// be waiting on it.
func (c *LoaderCache[V]) GetWithStats(ctx context.Context, key string, load func(context.Context) (V, error)) (V, bool, error) {
	if v, ok := c.lookup(ctx, key); ok {
		return v, true, nil
	}

	loadCtx := context.WithoutCancel(ctx)

	val, err, _ := c.group.Do(key, func() (any, error) {
		loaded, loadErr := load(loadCtx)
		if loadErr != nil {
			return zero[V](), loadErr
		}

		c.fill(loadCtx, key, loaded)

		return loaded, nil
	})
	if err != nil {
		return zero[V](), false, err
	}

	return val.(V), false, nil
}

func (c *LoaderCache[V]) lookup(ctx context.Context, key string) (V, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cache get failed, treating as miss", "key", key, "error", err)

		return zero[V](), false
	}

	if !ok {
		return zero[V](), false
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.WarnContext(ctx, "cache entry undecodable, treating as miss", "key", key, "error", err)

		return zero[V](), false
	}

	return v, true
}

func (c *LoaderCache[V]) fill(ctx context.Context, key string, v V) {
	raw, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "cache encode failed", "key", key, "error", err)

		return
	}

	if err := c.store.Put(ctx, key, raw, c.ttl); err != nil {
		slog.WarnContext(ctx, "cache put failed", "key", key, "error", err)
	}
}

func zero[V any]() (z V) { return z }
