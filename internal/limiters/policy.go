package limiters

import "time"

// LockState is the outcome of a lockout evaluation. A zero TTL means the
// record's expiry must be left alone.
type LockState struct {
	Locked bool
	TTL    time.Duration
}

// Evaluate decides lock state for a failure count. The TTL is the full window
// only for the failure that reaches the threshold; attempts past it do not
// move the expiry.
func Evaluate(count, threshold int64, window time.Duration) LockState {
	if threshold <= 0 || count < threshold {
		return LockState{}
	}
	if count == threshold {
		return LockState{Locked: true, TTL: window}
	}
	return LockState{Locked: true}
}

// LockoutPolicy binds the threshold and window used by the login flow.
type LockoutPolicy struct {
	Threshold int64
	Window    time.Duration
	// ExtendOnLockedAttempt re-arms the full window whenever a locked identity
	// tries again.
	ExtendOnLockedAttempt bool
}

// Evaluate applies [Evaluate] with the policy's threshold and window.
func (p LockoutPolicy) Evaluate(count int64) LockState {
	return Evaluate(count, p.Threshold, p.Window)
}

// EvaluateState decides whether a stored record is currently locked. Stale
// records (no remaining TTL) are never locked.
func (p LockoutPolicy) EvaluateState(s AttemptState) LockState {
	if s.Remaining <= 0 {
		return LockState{}
	}
	if s.Count < p.Threshold || p.Threshold <= 0 {
		return LockState{}
	}
	return LockState{Locked: true, TTL: s.Remaining}
}

// AttemptsRemaining reports how many failures are left before lockout.
func (p LockoutPolicy) AttemptsRemaining(count int64) int64 {
	left := p.Threshold - count
	if left < 0 {
		return 0
	}
	return left
}
