package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// cacheDDL is the schema for the summary cache table. It is applied via
// CREATE TABLE IF NOT EXISTS so a cache database can be initialized
// independently of the main migration system.
const cacheDDL = `
CREATE TABLE IF NOT EXISTS summary_cache (
    cache_key TEXT PRIMARY KEY,
    record BLOB NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summary_cache_expires
    ON summary_cache(expires_at);
`

// SQLiteStore is a Store backed by a SQLite table, so cached summaries
// survive daemon restarts. Every backend failure degrades to a miss or a
// no-op: the cache is an optimization, never a correctness requirement.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger

	now func() time.Time
}

// NewSQLiteStore wraps an existing database connection and applies the
// cache schema.
func NewSQLiteStore(db *sql.DB, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}

	if _, err := db.Exec(cacheDDL); err != nil {
		return nil, fmt.Errorf("apply cache schema: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		log: log.With("component", "cache"),
		now: time.Now,
	}, nil
}

// Get returns the entry for key, or None if absent, expired, or the
// backend is unavailable. An expired row is evicted as a side effect.
func (s *SQLiteStore) Get(ctx context.Context, key string) fn.Option[Entry] {
	row := s.db.QueryRowContext(ctx,
		`SELECT record, expires_at FROM summary_cache
		 WHERE cache_key = ?`, key,
	)

	var (
		record    []byte
		expiresAt int64
	)
	err := row.Scan(&record, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fn.None[Entry]()

	case err != nil:
		// Backend failure reads as a miss.
		s.log.Warn("Cache read failed", "key", key, "error", err)
		return fn.None[Entry]()
	}

	entry := Entry{
		Value:     record,
		ExpiresAt: time.Unix(expiresAt, 0),
	}

	if entry.Expired(s.now()) {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM summary_cache
			 WHERE cache_key = ? AND expires_at = ?`,
			key, expiresAt,
		); err != nil {
			s.log.Warn("Cache eviction failed",
				"key", key, "error", err,
			)
		}

		return fn.None[Entry]()
	}

	return fn.Some(entry)
}

// Put stores value under key, overwriting any existing row.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte,
	ttl time.Duration) error {

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summary_cache
		     (cache_key, record, expires_at, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		     record = excluded.record,
		     expires_at = excluded.expires_at,
		     created_at = excluded.created_at`,
		key, value, now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		// Best effort: log and carry on.
		s.log.Warn("Cache write failed", "key", key, "error", err)
	}

	return nil
}

// Invalidate removes the entry for key.
func (s *SQLiteStore) Invalidate(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM summary_cache WHERE cache_key = ?`, key,
	)
	if err != nil {
		s.log.Warn("Cache invalidation failed",
			"key", key, "error", err,
		)
	}

	return nil
}
