package goGuard

import "errors"

var (
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidInput reports a malformed identity, empty secret, or bad argument.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is what [LoginResult.Err] returns for a rejected attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLockedOut is what [LoginResult.Err] returns while an identity is locked.
	ErrLockedOut = errors.New("too many failed attempts")
	// ErrRateLimited is what [RateLimitDecision.Err] returns for a denied request.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrStoreUnavailable wraps counter store failures under a fail-closed policy.
	ErrStoreUnavailable = errors.New("counter store unavailable")
	// ErrVerifierUnavailable wraps faults raised by the credential verifier.
	ErrVerifierUnavailable = errors.New("credential verifier unavailable")
	// ErrUnknownOperation is returned by [Engine.Allow] for an operation with no rule.
	ErrUnknownOperation = errors.New("unknown rate limit operation")

	// ErrVerifierRequired is returned by Build when no Verifier was supplied.
	ErrVerifierRequired = errors.New("credential verifier required")
	// ErrStoreRequired is returned by Build when no counter store was supplied.
	ErrStoreRequired = errors.New("counter store required")
)
