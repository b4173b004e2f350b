package rate

import (
	"context"
	"regexp"
	"time"

	"github.com/MrEthical07/goGuard/counter"
)

// Decision is the result of one [Limiter.Allow] call.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
	// Anonymous is set when no identity was supplied and the store was not consulted.
	Anonymous bool
}

// operationPattern keeps ":" out of operation names so a key splits back
// into exactly one (operation, identity) pair.
var operationPattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// Limiter enforces per-identity, per-operation fixed windows.
type Limiter struct {
	store  counter.Store
	prefix string
}

// New creates a [Limiter] that stores windows under prefix.
func New(store counter.Store, prefix string) *Limiter {
	return &Limiter{store: store, prefix: prefix}
}

// Key returns the window key for an operation and normalized identity.
func (l *Limiter) Key(operation, identity string) string {
	return l.prefix + ":" + operation + ":" + identity
}

// Allow counts one request. The request is denied once the window's count
// exceeds limit; RetryAfter is then the time left in the window.
func (l *Limiter) Allow(ctx context.Context, identity, operation string, limit int64, window time.Duration) (Decision, error) {
	if !operationPattern.MatchString(operation) {
		return Decision{}, ErrInvalidOperation
	}
	if limit <= 0 || window <= 0 {
		return Decision{}, ErrInvalidLimit
	}
	if identity == "" {
		return Decision{Allowed: true, Limit: limit, Remaining: limit, Anonymous: true}, nil
	}

	key := l.Key(operation, identity)
	count, err := l.store.IncrementOrCreate(ctx, key, 1, window)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Allowed:   count <= limit,
		Count:     count,
		Limit:     limit,
		Remaining: max(limit-count, 0),
	}
	if d.Allowed {
		return d, nil
	}

	// The denial stands even if the TTL read fails; report the full window.
	retry, err := l.store.RemainingTTL(ctx, key)
	if err != nil || retry <= 0 {
		retry = window
	}
	d.RetryAfter = retry
	return d, nil
}

// Peek reports the current window count without counting a request.
func (l *Limiter) Peek(ctx context.Context, identity, operation string) (int64, time.Duration, error) {
	key := l.Key(operation, identity)
	count, found, err := l.store.Get(ctx, key)
	if err != nil || !found {
		return 0, 0, err
	}
	ttl, err := l.store.RemainingTTL(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	return count, ttl, nil
}
