package goGuard

import (
	"context"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
)

// Principal is the account a [Verifier] authenticated.
type Principal struct {
	ID         string
	Attributes map[string]string
}

// Verifier checks a secret against the credential store for a normalized
// identity.
//
// A (nil, nil) return means the credentials are wrong and counts toward the
// lockout threshold. A non-nil error is a verifier fault: it is surfaced as
// [ErrVerifierUnavailable] and never counted as a failed attempt.
type Verifier interface {
	Verify(ctx context.Context, identity, secret string) (*Principal, error)
}

// VerifierFunc adapts a function to [Verifier].
type VerifierFunc func(ctx context.Context, identity, secret string) (*Principal, error)

func (f VerifierFunc) Verify(ctx context.Context, identity, secret string) (*Principal, error) {
	return f(ctx, identity, secret)
}

// LoginOutcome is the policy decision for one login attempt.
type LoginOutcome int

const (
	LoginAuthenticated LoginOutcome = iota + 1
	LoginRejected
	LoginLockedOut
	LoginInvalidInput
)

func (o LoginOutcome) String() string {
	switch o {
	case LoginAuthenticated:
		return "authenticated"
	case LoginRejected:
		return "rejected"
	case LoginLockedOut:
		return "locked_out"
	case LoginInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// LoginResult is returned by [Engine.Login].
//
// Identity is the normalized identity and is empty when normalization failed.
// AttemptsRemaining is set only for LoginRejected, RetryAfter only for
// LoginLockedOut. Degraded marks a decision taken while the counter store
// was unreachable under the fail-open policy.
type LoginResult struct {
	Outcome           LoginOutcome
	Identity          string
	Principal         *Principal
	AttemptsRemaining int
	RetryAfter        time.Duration
	Degraded          bool
}

// SecondsRemaining returns RetryAfter rounded up to whole seconds.
func (r LoginResult) SecondsRemaining() int64 {
	return ceilSeconds(r.RetryAfter)
}

// Err maps a non-authenticated outcome to its sentinel error, or nil.
func (r LoginResult) Err() error {
	switch r.Outcome {
	case LoginAuthenticated:
		return nil
	case LoginRejected:
		return ErrInvalidCredentials
	case LoginLockedOut:
		return ErrLockedOut
	case LoginInvalidInput:
		return ErrInvalidInput
	default:
		return ErrEngineNotReady
	}
}

// RateLimitDecision is returned by [Engine.Allow] and [Engine.AllowN].
type RateLimitDecision struct {
	Operation  string
	Identity   string
	Allowed    bool
	Count      int64
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
	// Anonymous is set when no identity was supplied; anonymous requests are
	// not counted.
	Anonymous bool
	Degraded  bool
}

// SecondsRemaining returns RetryAfter rounded up to whole seconds.
func (d RateLimitDecision) SecondsRemaining() int64 {
	return ceilSeconds(d.RetryAfter)
}

// Err returns [ErrRateLimited] for a denied decision.
func (d RateLimitDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrRateLimited
}

// LockoutStatus is returned by [Engine.Status].
type LockoutStatus struct {
	Identity          string
	Failures          int64
	Locked            bool
	RetryAfter        time.Duration
	AttemptsRemaining int
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

// NormalizeIdentity returns the canonical form of an account identifier, the
// same form used for counter keys. ok is false for input the engine rejects.
func NormalizeIdentity(raw string) (string, bool) {
	return limiters.NormalizeIdentity(raw)
}
