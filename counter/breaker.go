package counter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures [NewBreakerStore].
type BreakerConfig struct {
	Name string
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval is the closed-state window after which counts reset.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	Logger              *slog.Logger
}

// DefaultBreakerConfig trips after five consecutive store failures and probes
// again after ten seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "counter-store",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             10 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerStore short-circuits calls to an unhealthy store. While open, every
// call fails immediately with [ErrUnavailable], so callers apply their
// failure policy without waiting on network timeouts.
//
// Only ErrUnavailable results count as failures; validation errors pass
// through without affecting breaker state.
type BreakerStore struct {
	next    Store
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next.
func NewBreakerStore(next Store, cfg BreakerConfig) *BreakerStore {
	def := DefaultBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = def.ConsecutiveFailures
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.ConsecutiveFailures

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("counter store breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
	}

	return &BreakerStore{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the current breaker state.
func (s *BreakerStore) State() gobreaker.State {
	return s.breaker.State()
}

func (s *BreakerStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	out, err := s.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, err
}

type getResult struct {
	count int64
	found bool
}

func (s *BreakerStore) Get(ctx context.Context, key string) (int64, bool, error) {
	out, err := s.execute(func() (interface{}, error) {
		count, found, err := s.next.Get(ctx, key)
		return getResult{count: count, found: found}, err
	})
	if err != nil {
		return 0, false, err
	}
	r := out.(getResult)
	return r.count, r.found, nil
}

func (s *BreakerStore) IncrementOrCreate(ctx context.Context, key string, delta int64, ttlOnCreate time.Duration) (int64, error) {
	out, err := s.execute(func() (interface{}, error) {
		return s.next.IncrementOrCreate(ctx, key, delta, ttlOnCreate)
	})
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}

func (s *BreakerStore) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	out, err := s.execute(func() (interface{}, error) {
		return s.next.RemainingTTL(ctx, key)
	})
	if err != nil {
		return 0, err
	}
	return out.(time.Duration), nil
}

func (s *BreakerStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.next.Expire(ctx, key, ttl)
	})
	return err
}

func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.next.Delete(ctx, key)
	})
	return err
}
