package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable wraps every infrastructure failure of a SessionStore.
var ErrStoreUnavailable = errors.New("session store unavailable")

// SessionStore is a key/value store with per-key TTL shared by every server instance.
// Each method is atomic with respect to the keys it touches.
type SessionStore interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key, expiring after ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// GetDelete reads and removes key in one step.
	GetDelete(ctx context.Context, key string) (string, bool, error)
	// Swap writes value under key and returns the previous value, if any.
	Swap(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error)
	// CompareAndSwap replaces the value under key only when it currently equals expected.
	CompareAndSwap(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error)
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}
