package flows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/counter"
	"github.com/MrEthical07/goGuard/counter/countertest"
	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/internal/rate"
)

var (
	errNotReady    = errors.New("not ready")
	errStoreDown   = errors.New("store unavailable")
	errVerifier    = errors.New("verifier unavailable")
	errInvalidTest = errors.New("invalid input")
)

// switchStore fails every call while down is set.
type switchStore struct {
	counter.Store
	down atomic.Bool
}

func (s *switchStore) fail() error {
	return fmt.Errorf("%w: connection refused", counter.ErrUnavailable)
}

func (s *switchStore) Get(ctx context.Context, key string) (int64, bool, error) {
	if s.down.Load() {
		return 0, false, s.fail()
	}
	return s.Store.Get(ctx, key)
}

func (s *switchStore) IncrementOrCreate(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	if s.down.Load() {
		return 0, s.fail()
	}
	return s.Store.IncrementOrCreate(ctx, key, delta, ttl)
}

func (s *switchStore) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	if s.down.Load() {
		return 0, s.fail()
	}
	return s.Store.RemainingTTL(ctx, key)
}

func (s *switchStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if s.down.Load() {
		return s.fail()
	}
	return s.Store.Expire(ctx, key, ttl)
}

func (s *switchStore) Delete(ctx context.Context, key string) error {
	if s.down.Load() {
		return s.fail()
	}
	return s.Store.Delete(ctx, key)
}

// fakeVerifier accepts one secret per identity and counts calls.
type fakeVerifier struct {
	mu      sync.Mutex
	secrets map[string]string
	calls   int
	err     error
}

func (v *fakeVerifier) verify(_ context.Context, identity, secret string) (*LoginPrincipal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	if want, ok := v.secrets[identity]; ok && want == secret {
		return &LoginPrincipal{ID: "user-" + identity}, nil
	}
	return nil, nil
}

func (v *fakeVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type loginHarness struct {
	clock    *countertest.Clock
	store    *switchStore
	tracker  *limiters.AttemptTracker
	verifier *fakeVerifier
	metrics  map[int]int
	events   []string
	mu       sync.Mutex
}

const (
	mAuthenticated = iota + 1
	mRejected
	mLockedOut
	mInvalidInput
	mLockoutTriggered
	mStoreUnavailable
	mFailOpen
	mVerifierError
	mAllowed
	mExceeded
	mCleared
)

func newLoginHarness() *loginHarness {
	clock := countertest.NewClock()
	store := &switchStore{Store: counter.NewMemoryStore(clock.Now)}
	return &loginHarness{
		clock:    clock,
		store:    store,
		tracker:  limiters.NewAttemptTracker(store, "lf", 300*time.Second),
		verifier: &fakeVerifier{secrets: map[string]string{"alice": "correct-horse"}},
		metrics:  map[int]int{},
	}
}

func (h *loginHarness) metricInc(id int) {
	h.mu.Lock()
	h.metrics[id]++
	h.mu.Unlock()
}

func (h *loginHarness) emitAudit(_ context.Context, event string, _ bool, _ string, _ error, _ func() map[string]string) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
}

func (h *loginHarness) deps() LoginDeps {
	return LoginDeps{
		Policy:           limiters.LockoutPolicy{Threshold: 5, Window: 300 * time.Second},
		OperationTimeout: time.Second,
		Normalize:        limiters.NormalizeIdentity,
		CurrentState:     h.tracker.CurrentState,
		RecordFailure:    h.tracker.RecordFailure,
		RecordSuccess:    h.tracker.RecordSuccess,
		Rearm:            h.tracker.Rearm,
		Remaining:        h.tracker.Remaining,
		Verify:           h.verifier.verify,
		Now:              h.clock.Now,
		MetricInc:        h.metricInc,
		EmitAudit:        h.emitAudit,
		Metrics: LoginMetrics{
			LoginAuthenticated: mAuthenticated,
			LoginRejected:      mRejected,
			LoginLockedOut:     mLockedOut,
			LoginInvalidInput:  mInvalidInput,
			LockoutTriggered:   mLockoutTriggered,
			StoreUnavailable:   mStoreUnavailable,
			FailOpen:           mFailOpen,
			VerifierError:      mVerifierError,
		},
		Events: LoginEvents{
			Authenticated:    "login_authenticated",
			Rejected:         "login_rejected",
			LockedOut:        "login_locked_out",
			LockoutTriggered: "lockout_triggered",
			InvalidInput:     "login_invalid_input",
			StoreUnavailable: "store_unavailable",
			VerifierError:    "verifier_error",
		},
		Errors: LoginErrors{
			EngineNotReady:      errNotReady,
			StoreUnavailable:    errStoreDown,
			VerifierUnavailable: errVerifier,
		},
	}
}

func (h *loginHarness) rateDeps(limiter *rate.Limiter) RateLimitDeps {
	return RateLimitDeps{
		OperationTimeout: time.Second,
		Normalize:        limiters.NormalizeIdentity,
		Allow:            limiter.Allow,
		MetricInc:        h.metricInc,
		EmitAudit:        h.emitAudit,
		Metrics: RateLimitMetrics{
			Allowed:          mAllowed,
			Exceeded:         mExceeded,
			StoreUnavailable: mStoreUnavailable,
			FailOpen:         mFailOpen,
		},
		Events: RateLimitEvents{
			Exceeded:         "rate_limit_exceeded",
			StoreUnavailable: "store_unavailable",
		},
		Errors: RateLimitErrors{
			EngineNotReady:   errNotReady,
			InvalidInput:     errInvalidTest,
			StoreUnavailable: errStoreDown,
		},
	}
}

func (h *loginHarness) statusDeps() StatusDeps {
	return StatusDeps{
		Policy:               limiters.LockoutPolicy{Threshold: 5, Window: 300 * time.Second},
		OperationTimeout:     time.Second,
		Normalize:            limiters.NormalizeIdentity,
		CurrentState:         h.tracker.CurrentState,
		Clear:                h.tracker.RecordSuccess,
		MetricInc:            h.metricInc,
		EmitAudit:            h.emitAudit,
		LockoutClearedMetric: mCleared,
		LockoutClearedEvent:  "lockout_cleared",
		Errors: StatusErrors{
			EngineNotReady:   errNotReady,
			InvalidInput:     errInvalidTest,
			StoreUnavailable: errStoreDown,
		},
	}
}
