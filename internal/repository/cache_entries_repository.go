package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formbricks/feedback-insights/pkg/cache"
)

// CacheEntriesRepository is a cache.Store backed by the cache_entries table,
// shared by every API instance pointing at the same database.
type CacheEntriesRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

var _ cache.Store = (*CacheEntriesRepository)(nil)

// NewCacheEntriesRepository creates a new Postgres cache store.
func NewCacheEntriesRepository(db *pgxpool.Pool) *CacheEntriesRepository {
	return &CacheEntriesRepository{db: db, now: time.Now}
}

// Get returns the value for key if present and not expired.
func (r *CacheEntriesRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte

	err := r.db.QueryRow(ctx,
		"SELECT value FROM cache_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)",
		key, r.now(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return value, true, nil
}

// Put stores value under key. A non-positive ttl means the entry never expires.
func (r *CacheEntriesRepository) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time

	if ttl > 0 {
		t := r.now().Add(ttl)
		expiresAt = &t
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO cache_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *CacheEntriesRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM cache_entries WHERE key = $1", key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (r *CacheEntriesRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= $1", r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache entries: %w", err)
	}

	return tag.RowsAffected(), nil
}
