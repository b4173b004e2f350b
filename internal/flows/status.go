package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
)

// StatusResult is the flow-local lockout status shape.
type StatusResult struct {
	Identity          string
	Failures          int64
	Locked            bool
	RetryAfter        time.Duration
	AttemptsRemaining int64
}

// StatusErrors carries host-level sentinel errors used by status flows.
type StatusErrors struct {
	EngineNotReady   error
	InvalidInput     error
	StoreUnavailable error
}

// StatusDeps captures lockout inspection and reset dependencies.
type StatusDeps struct {
	Policy           limiters.LockoutPolicy
	OperationTimeout time.Duration

	Normalize    func(string) (string, bool)
	CurrentState func(context.Context, string) (limiters.AttemptState, error)
	Clear        func(context.Context, string) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	LockoutClearedMetric int
	LockoutClearedEvent  string
	Errors               StatusErrors
}

// RunStatus reads the lockout record for an identity without mutating it.
func RunStatus(ctx context.Context, rawIdentity string, deps StatusDeps) (StatusResult, error) {
	if deps.Normalize == nil || deps.CurrentState == nil {
		return StatusResult{}, deps.Errors.EngineNotReady
	}
	identity, ok := deps.Normalize(rawIdentity)
	if !ok {
		return StatusResult{}, deps.Errors.InvalidInput
	}

	readCtx, cancel := boundedContext(ctx, deps.OperationTimeout)
	defer cancel()
	state, err := deps.CurrentState(readCtx, identity)
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	lock := deps.Policy.EvaluateState(state)
	return StatusResult{
		Identity:          identity,
		Failures:          state.Count,
		Locked:            lock.Locked,
		RetryAfter:        lock.TTL,
		AttemptsRemaining: deps.Policy.AttemptsRemaining(state.Count),
	}, nil
}

// RunUnlock clears the lockout record for an identity.
func RunUnlock(ctx context.Context, rawIdentity string, deps StatusDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Normalize == nil || deps.Clear == nil {
		return deps.Errors.EngineNotReady
	}
	identity, ok := deps.Normalize(rawIdentity)
	if !ok {
		return deps.Errors.InvalidInput
	}

	if err := mutate(ctx, deps.OperationTimeout, func(c context.Context) error {
		return deps.Clear(c, identity)
	}); err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	deps.MetricInc(deps.LockoutClearedMetric)
	deps.EmitAudit(ctx, deps.LockoutClearedEvent, true, identity, nil, func() map[string]string {
		return map[string]string{"reason": "admin_unlock"}
	})
	return nil
}
