package limiters

import (
	"context"
	"time"

	"github.com/MrEthical07/goGuard/counter"
)

// AttemptState is a read-only view of one identity's failure record.
type AttemptState struct {
	Count     int64
	Remaining time.Duration
}

// AttemptTracker counts consecutive failed logins per normalized identity.
type AttemptTracker struct {
	store  counter.Store
	prefix string
	window time.Duration
}

// NewAttemptTracker creates a tracker storing records under "<prefix>:<identity>".
func NewAttemptTracker(store counter.Store, prefix string, window time.Duration) *AttemptTracker {
	return &AttemptTracker{store: store, prefix: prefix, window: window}
}

// Window returns the lockout window new records are created with.
func (t *AttemptTracker) Window() time.Duration {
	return t.window
}

// Key returns the store key for a normalized identity.
func (t *AttemptTracker) Key(identity string) string {
	return t.prefix + ":" + identity
}

// CurrentState reads the record without mutating it. A count with no
// remaining TTL is stale and reported as absent.
func (t *AttemptTracker) CurrentState(ctx context.Context, identity string) (AttemptState, error) {
	key := t.Key(identity)

	count, found, err := t.store.Get(ctx, key)
	if err != nil {
		return AttemptState{}, err
	}
	if !found {
		return AttemptState{}, nil
	}

	remaining, err := t.store.RemainingTTL(ctx, key)
	if err != nil {
		return AttemptState{}, err
	}
	if remaining <= 0 {
		return AttemptState{}, nil
	}
	return AttemptState{Count: count, Remaining: remaining}, nil
}

// RecordFailure adds one failure. The first failure creates the record with
// the full window; later failures keep the running TTL.
func (t *AttemptTracker) RecordFailure(ctx context.Context, identity string) (int64, error) {
	return t.store.IncrementOrCreate(ctx, t.Key(identity), 1, t.window)
}

// RecordSuccess clears the record. Clearing an absent record is a no-op.
func (t *AttemptTracker) RecordSuccess(ctx context.Context, identity string) error {
	return t.store.Delete(ctx, t.Key(identity))
}

// Rearm resets the remaining TTL of an existing record to ttl.
func (t *AttemptTracker) Rearm(ctx context.Context, identity string, ttl time.Duration) error {
	return t.store.Expire(ctx, t.Key(identity), ttl)
}

// Remaining returns the TTL left on the record, 0 when absent.
func (t *AttemptTracker) Remaining(ctx context.Context, identity string) (time.Duration, error) {
	return t.store.RemainingTTL(ctx, t.Key(identity))
}
