// Package cache provides the TTL'd result cache used by the request
// orchestrator. Caching is strictly an optimization: a backend that is
// broken or unreachable degrades to always-recompute behavior and never
// fails a request.
package cache

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultTTL is how long a cached summary remains valid.
const DefaultTTL = 24 * time.Hour

// Entry is a cached value together with its expiry instant.
type Entry struct {
	// Value is the serialized summary record.
	Value []byte

	// ExpiresAt is the instant after which the entry is treated as
	// absent.
	ExpiresAt time.Time
}

// Expired reports whether the entry has passed its expiry at the given
// instant.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store is the key/value cache contract. Implementations must be safe
// for concurrent use.
//
// Get never returns an error: a backend failure is indistinguishable
// from a miss by design, since the caller's fallback (recompute) is the
// same either way. Put is last-writer-wins; concurrent producers for the
// same key are prevented upstream by the single-flight coordinator, but
// implementations do not rely on that for safety.
type Store interface {
	// Get returns the entry for key, or None if absent or expired.
	// An expired entry may be physically evicted as a side effect.
	Get(ctx context.Context, key string) fn.Option[Entry]

	// Put stores value under key with the given TTL, overwriting any
	// existing entry. Failures are best-effort: callers log and move
	// on.
	Put(ctx context.Context, key string, value []byte,
		ttl time.Duration) error

	// Invalidate removes the entry for key. Idempotent.
	Invalidate(ctx context.Context, key string) error
}
