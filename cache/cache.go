package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// Store represents a TTL-based key/value abstraction that can be backed by
// memory, Redis, bbolt, or any other KV store. A ttl of zero or less means
// the key never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Delete returns ErrNotFound when key is absent.
	Delete(ctx context.Context, key string) error
	// CompareAndSwap replaces the value of key with next only when it
	// currently equals old, as one atomic step. A missing key never matches.
	CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error)
}
