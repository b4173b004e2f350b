package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
)

// LoginOutcome is the flow-local login outcome.
type LoginOutcome int

const (
	LoginOutcomeAuthenticated LoginOutcome = iota + 1
	LoginOutcomeRejected
	LoginOutcomeLockedOut
	LoginOutcomeInvalidInput
)

// LoginPrincipal is the flow-local view of an authenticated account.
type LoginPrincipal struct {
	ID         string
	Attributes map[string]string
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Outcome           LoginOutcome
	Identity          string
	Principal         *LoginPrincipal
	AttemptsRemaining int64
	RetryAfter        time.Duration
	Degraded          bool
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginAuthenticated int
	LoginRejected      int
	LoginLockedOut     int
	LoginInvalidInput  int
	LockoutTriggered   int
	StoreUnavailable   int
	FailOpen           int
	VerifierError      int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Authenticated    string
	Rejected         string
	LockedOut        string
	LockoutTriggered string
	InvalidInput     string
	StoreUnavailable string
	VerifierError    string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady      error
	StoreUnavailable    error
	VerifierUnavailable error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Policy           limiters.LockoutPolicy
	FailClosed       bool
	OperationTimeout time.Duration

	Normalize     func(string) (string, bool)
	CurrentState  func(context.Context, string) (limiters.AttemptState, error)
	RecordFailure func(context.Context, string) (int64, error)
	RecordSuccess func(context.Context, string) error
	Rearm         func(context.Context, string, time.Duration) error
	Remaining     func(context.Context, string) (time.Duration, error)
	Verify        func(context.Context, string, string) (*LoginPrincipal, error)

	Now            func() time.Time
	MetricInc      func(int)
	ObserveLatency func(time.Duration)
	EmitAudit      func(context.Context, string, bool, string, error, func() map[string]string)
	Warn           func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func (deps *LoginDeps) defaults() bool {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveLatency == nil {
		deps.ObserveLatency = func(time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	return deps.Normalize != nil &&
		deps.CurrentState != nil &&
		deps.RecordFailure != nil &&
		deps.RecordSuccess != nil &&
		deps.Rearm != nil &&
		deps.Remaining != nil &&
		deps.Verify != nil
}

// RunLogin executes one login attempt against the lockout tracker.
//
// Policy outcomes (rejected, locked out, invalid input) are reported in the
// result. The error return is reserved for a fail-closed store outage, a
// verifier fault, or an engine that is not ready.
func RunLogin(ctx context.Context, rawIdentity, secret string, deps LoginDeps) (LoginResult, error) {
	if !deps.defaults() {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	started := deps.Now()
	defer func() { deps.ObserveLatency(deps.Now().Sub(started)) }()

	identity, ok := deps.Normalize(rawIdentity)
	if !ok || secret == "" {
		deps.MetricInc(deps.Metrics.LoginInvalidInput)
		deps.EmitAudit(ctx, deps.Events.InvalidInput, false, identity, nil, func() map[string]string {
			reason := "invalid_identity"
			if ok {
				reason = "empty_secret"
			}
			return map[string]string{"reason": reason}
		})
		return LoginResult{Outcome: LoginOutcomeInvalidInput, Identity: identity}, nil
	}

	result := LoginResult{Identity: identity}

	readCtx, cancel := boundedContext(ctx, deps.OperationTimeout)
	state, err := deps.CurrentState(readCtx, identity)
	cancel()
	if err != nil {
		if ferr := storeFailure(ctx, deps, identity, "read_state", err); ferr != nil {
			return LoginResult{}, ferr
		}
		result.Degraded = true
	}

	if !result.Degraded {
		if lock := deps.Policy.EvaluateState(state); lock.Locked {
			retry := lock.TTL
			if deps.Policy.ExtendOnLockedAttempt {
				if err := mutate(ctx, deps.OperationTimeout, func(c context.Context) error {
					return deps.Rearm(c, identity, deps.Policy.Window)
				}); err != nil {
					deps.Warn("goGuard: lockout extend failed", "identity", identity, "error", err)
				} else {
					retry = deps.Policy.Window
				}
			}
			deps.MetricInc(deps.Metrics.LoginLockedOut)
			deps.EmitAudit(ctx, deps.Events.LockedOut, false, identity, nil, func() map[string]string {
				return map[string]string{
					"failures":      fmt.Sprintf("%d", state.Count),
					"retry_after_s": fmt.Sprintf("%d", ceilSeconds(retry)),
				}
			})
			result.Outcome = LoginOutcomeLockedOut
			result.RetryAfter = retry
			return result, nil
		}
	}

	principal, err := deps.Verify(ctx, identity, secret)
	secret = ""
	if err != nil {
		deps.MetricInc(deps.Metrics.VerifierError)
		deps.Warn("goGuard: credential verifier failed", "identity", identity, "error", err)
		deps.EmitAudit(ctx, deps.Events.VerifierError, false, identity, err, nil)
		return LoginResult{}, fmt.Errorf("%w: %v", deps.Errors.VerifierUnavailable, err)
	}

	if principal != nil {
		if err := mutate(ctx, deps.OperationTimeout, func(c context.Context) error {
			return deps.RecordSuccess(c, identity)
		}); err != nil {
			deps.MetricInc(deps.Metrics.StoreUnavailable)
			deps.Warn("goGuard: failed to clear lockout record", "identity", identity, "error", err)
		}
		deps.MetricInc(deps.Metrics.LoginAuthenticated)
		deps.EmitAudit(ctx, deps.Events.Authenticated, true, identity, nil, nil)
		result.Outcome = LoginOutcomeAuthenticated
		result.Principal = principal
		return result, nil
	}

	var count int64
	err = mutate(ctx, deps.OperationTimeout, func(c context.Context) error {
		var ierr error
		count, ierr = deps.RecordFailure(c, identity)
		return ierr
	})
	if err != nil {
		if ferr := storeFailure(ctx, deps, identity, "record_failure", err); ferr != nil {
			return LoginResult{}, ferr
		}
		result.Degraded = true
		deps.MetricInc(deps.Metrics.LoginRejected)
		deps.EmitAudit(ctx, deps.Events.Rejected, false, identity, nil, func() map[string]string {
			return map[string]string{"degraded": "true"}
		})
		result.Outcome = LoginOutcomeRejected
		result.AttemptsRemaining = deps.Policy.AttemptsRemaining(state.Count + 1)
		return result, nil
	}

	lock := deps.Policy.Evaluate(count)
	switch {
	case lock.Locked && lock.TTL > 0:
		// Threshold crossing: the lockout runs a full window from now.
		if err := mutate(ctx, deps.OperationTimeout, func(c context.Context) error {
			return deps.Rearm(c, identity, lock.TTL)
		}); err != nil {
			deps.MetricInc(deps.Metrics.StoreUnavailable)
			deps.Warn("goGuard: lockout rearm failed", "identity", identity, "error", err)
		}
		deps.MetricInc(deps.Metrics.LockoutTriggered)
		deps.MetricInc(deps.Metrics.LoginLockedOut)
		deps.EmitAudit(ctx, deps.Events.LockoutTriggered, false, identity, nil, func() map[string]string {
			return map[string]string{
				"failures":      fmt.Sprintf("%d", count),
				"retry_after_s": fmt.Sprintf("%d", ceilSeconds(lock.TTL)),
			}
		})
		result.Outcome = LoginOutcomeLockedOut
		result.RetryAfter = lock.TTL
		return result, nil

	case lock.Locked:
		// Another request crossed the threshold concurrently.
		retry := lockedRemaining(ctx, deps, identity)
		deps.MetricInc(deps.Metrics.LoginLockedOut)
		deps.EmitAudit(ctx, deps.Events.LockedOut, false, identity, nil, func() map[string]string {
			return map[string]string{"failures": fmt.Sprintf("%d", count)}
		})
		result.Outcome = LoginOutcomeLockedOut
		result.RetryAfter = retry
		return result, nil
	}

	deps.MetricInc(deps.Metrics.LoginRejected)
	remaining := deps.Policy.AttemptsRemaining(count)
	deps.EmitAudit(ctx, deps.Events.Rejected, false, identity, nil, func() map[string]string {
		return map[string]string{
			"failures":           fmt.Sprintf("%d", count),
			"attempts_remaining": fmt.Sprintf("%d", remaining),
		}
	})
	result.Outcome = LoginOutcomeRejected
	result.AttemptsRemaining = remaining
	return result, nil
}

func lockedRemaining(ctx context.Context, deps LoginDeps, identity string) time.Duration {
	if deps.Policy.ExtendOnLockedAttempt {
		if err := mutate(ctx, deps.OperationTimeout, func(c context.Context) error {
			return deps.Rearm(c, identity, deps.Policy.Window)
		}); err == nil {
			return deps.Policy.Window
		}
	}

	readCtx, cancel := boundedContext(ctx, deps.OperationTimeout)
	defer cancel()
	retry, err := deps.Remaining(readCtx, identity)
	if err != nil || retry <= 0 {
		return deps.Policy.Window
	}
	return retry
}

// storeFailure applies the login failure policy. It returns a non-nil error
// only when the policy is fail-closed.
func storeFailure(ctx context.Context, deps LoginDeps, identity, stage string, err error) error {
	deps.MetricInc(deps.Metrics.StoreUnavailable)
	deps.Warn("goGuard: counter store unavailable during login",
		"stage", stage,
		"fail_closed", deps.FailClosed,
		"error", err,
	)
	deps.EmitAudit(ctx, deps.Events.StoreUnavailable, false, identity, err, func() map[string]string {
		return map[string]string{"stage": stage, "operation": "login"}
	})
	if deps.FailClosed {
		return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	deps.MetricInc(deps.Metrics.FailOpen)
	return nil
}
