package counter

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable marks any failure to reach or operate the backing store.
	ErrUnavailable = errors.New("counter store unavailable")
	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("counter key must not be empty")
	// ErrInvalidTTL is returned when a create or expire call carries a non-positive TTL.
	ErrInvalidTTL = errors.New("counter ttl must be > 0")
)

// Store is a shared key/value counter store with TTL-aware atomic increments.
//
// Implementations must be safe for concurrent use by many goroutines and, for
// shared backends, by many processes.
type Store interface {
	// Get returns the current count. found is false when the key is absent or expired.
	Get(ctx context.Context, key string) (count int64, found bool, err error)

	// IncrementOrCreate atomically adds delta to key. An absent or expired key is
	// created at delta with ttlOnCreate; an existing key keeps its TTL.
	IncrementOrCreate(ctx context.Context, key string, delta int64, ttlOnCreate time.Duration) (int64, error)

	// RemainingTTL returns the time left before key expires, or 0 when absent.
	RemainingTTL(ctx context.Context, key string) (time.Duration, error)

	// Expire re-arms the TTL of an existing key. Absent keys are left absent.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Sweepable is implemented by backends that keep expired records until purged.
type Sweepable interface {
	// Sweep removes every expired record and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
}

func checkIncrement(key string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
