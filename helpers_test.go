package goGuard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/counter"
	"github.com/MrEthical07/goGuard/counter/countertest"
)

const (
	testIdentity = "alice"
	testSecret   = "correct-horse"
)

// flakyStore wraps a MemoryStore and fails every call while down is set.
type flakyStore struct {
	*counter.MemoryStore
	down atomic.Bool
}

func (s *flakyStore) fail() error {
	if s.down.Load() {
		return fmt.Errorf("%w: connection refused", counter.ErrUnavailable)
	}
	return nil
}

func (s *flakyStore) Get(ctx context.Context, key string) (int64, bool, error) {
	if err := s.fail(); err != nil {
		return 0, false, err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) IncrementOrCreate(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	if err := s.fail(); err != nil {
		return 0, err
	}
	return s.MemoryStore.IncrementOrCreate(ctx, key, delta, ttl)
}

func (s *flakyStore) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	if err := s.fail(); err != nil {
		return 0, err
	}
	return s.MemoryStore.RemainingTTL(ctx, key)
}

func (s *flakyStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.fail(); err != nil {
		return err
	}
	return s.MemoryStore.Expire(ctx, key, ttl)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if err := s.fail(); err != nil {
		return err
	}
	return s.MemoryStore.Delete(ctx, key)
}

// countingVerifier accepts testIdentity/testSecret and counts every call.
type countingVerifier struct {
	calls atomic.Int64
	fault atomic.Bool
}

var errVerifierDown = errors.New("directory offline")

func (v *countingVerifier) Verify(_ context.Context, identity, secret string) (*Principal, error) {
	v.calls.Add(1)
	if v.fault.Load() {
		return nil, errVerifierDown
	}
	if identity == testIdentity && secret == testSecret {
		return &Principal{ID: "user-alice"}, nil
	}
	return nil, nil
}

type testEngine struct {
	*Engine
	clock    *countertest.Clock
	store    *flakyStore
	verifier *countingVerifier
}

func newTestEngine(t *testing.T, cfg Config, sink AuditSink) *testEngine {
	t.Helper()

	clock := countertest.NewClock()
	store := &flakyStore{MemoryStore: counter.NewMemoryStore(clock.Now)}
	verifier := &countingVerifier{}

	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithVerifier(verifier).
		WithAuditSink(sink).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, clock: clock, store: store, verifier: verifier}
}

func mustLogin(t *testing.T, e *testEngine, identity, secret string) LoginResult {
	t.Helper()
	res, err := e.Login(context.Background(), identity, secret)
	if err != nil {
		t.Fatalf("Login(%q): %v", identity, err)
	}
	return res
}

func containsCode(codes []string, want string) bool {
	for _, c := range codes {
		if c == want {
			return true
		}
	}
	return false
}
