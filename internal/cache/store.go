// Package cache provides a small key/value store abstraction used for
// replay defense, rate-limit counters, and short-lived idempotency guards.
// It is intentionally narrow: Get/Set/Del for values, Incr for counters,
// SetNX for the set-once-wins guards the spec calls "replay defense".
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Store is the interface every rate-limit/replay/idempotency check goes
// through. It has two implementations: Redis-backed for production, and an
// in-memory one for tests and single-process deployments.
type Store interface {
	// Get returns the raw bytes stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value at key with the given TTL (0 means no expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del removes key.
	Del(ctx context.Context, key string) error
	// Incr atomically increments the integer counter at key by delta and
	// returns the new value. If this is the first increment (i.e. the key
	// did not exist), the caller is responsible for setting a TTL via
	// Expire, mirroring the "set TTL if new" idiom used throughout the
	// rate limiter.
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	// Expire sets key's TTL to ttl, replacing any TTL it already has. A
	// missing key is left absent.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// SetNX sets key to value only if it does not already exist, returning
	// true if the set happened (i.e. this caller "won"). Used for replay
	// defense and 5-second webhook idempotency collapse.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Close releases underlying resources.
	Close() error
}
