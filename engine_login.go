package goGuard

import (
	"context"

	internalflows "github.com/MrEthical07/goGuard/internal/flows"
)

// Login runs one login attempt for identity through the lockout gate.
//
// Wrong credentials, lockouts and malformed input are reported through
// [LoginResult.Outcome] with a nil error. The error return is reserved for
// infrastructure faults: [ErrStoreUnavailable] under a fail-closed policy,
// [ErrVerifierUnavailable], or [ErrEngineNotReady].
func (e *Engine) Login(ctx context.Context, identity, secret string) (LoginResult, error) {
	if e == nil {
		return LoginResult{}, ErrEngineNotReady
	}
	res, err := internalflows.RunLogin(ctx, identity, secret, e.deps.Login)
	if err != nil {
		return LoginResult{}, err
	}
	return fromFlowLoginResult(res), nil
}

// Status reports the lockout record for identity without modifying it.
func (e *Engine) Status(ctx context.Context, identity string) (LockoutStatus, error) {
	if e == nil {
		return LockoutStatus{}, ErrEngineNotReady
	}
	res, err := internalflows.RunStatus(ctx, identity, e.deps.Status)
	if err != nil {
		return LockoutStatus{}, err
	}
	return LockoutStatus{
		Identity:          res.Identity,
		Failures:          res.Failures,
		Locked:            res.Locked,
		RetryAfter:        res.RetryAfter,
		AttemptsRemaining: int(res.AttemptsRemaining),
	}, nil
}

// Unlock clears the failure record for identity, lifting any lockout.
func (e *Engine) Unlock(ctx context.Context, identity string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunUnlock(ctx, identity, e.deps.Status)
}

func fromFlowLoginResult(res internalflows.LoginResult) LoginResult {
	out := LoginResult{
		Outcome:           fromFlowLoginOutcome(res.Outcome),
		Identity:          res.Identity,
		AttemptsRemaining: int(res.AttemptsRemaining),
		RetryAfter:        res.RetryAfter,
		Degraded:          res.Degraded,
	}
	if res.Principal != nil {
		out.Principal = &Principal{ID: res.Principal.ID, Attributes: res.Principal.Attributes}
	}
	return out
}

func fromFlowLoginOutcome(o internalflows.LoginOutcome) LoginOutcome {
	switch o {
	case internalflows.LoginOutcomeAuthenticated:
		return LoginAuthenticated
	case internalflows.LoginOutcomeRejected:
		return LoginRejected
	case internalflows.LoginOutcomeLockedOut:
		return LoginLockedOut
	case internalflows.LoginOutcomeInvalidInput:
		return LoginInvalidInput
	default:
		return 0
	}
}
