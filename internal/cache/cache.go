// Package cache defines the key-value cache adapter contract.
package cache

import (
	"context"
	"iter"
	"time"
)

// Cache is implemented by every key-value cache adapter.
type Cache interface {
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// ScanByPattern lazily yields every key matching a glob pattern.
	// Iteration stops at the first error, which is yielded once.
	ScanByPattern(ctx context.Context, pattern string) iter.Seq2[string, error]

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes every key matching pattern, one key at a time,
	// and returns how many were removed.
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)

	Close() error
}
