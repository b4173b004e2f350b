package goGuard

import (
	"context"
	"fmt"
	"time"

	internalflows "github.com/MrEthical07/goGuard/internal/flows"
)

// Allow counts one request by identity against the configured rule for
// operation. A blank identity is anonymous and always allowed.
func (e *Engine) Allow(ctx context.Context, identity, operation string) (RateLimitDecision, error) {
	if e == nil {
		return RateLimitDecision{}, ErrEngineNotReady
	}
	rule, ok := e.config.RateLimit.Rules[operation]
	if !ok {
		return RateLimitDecision{}, fmt.Errorf("%w: %q", ErrUnknownOperation, operation)
	}
	failClosed := rule.FailClosed || e.config.Failure.RateLimit == FailClosed
	return e.allow(ctx, identity, operation, int64(rule.Limit), rule.Period, failClosed)
}

// AllowN counts one request against an explicit limit per period, for
// operations without a configured rule. operation must match [a-z0-9_.-]+.
func (e *Engine) AllowN(ctx context.Context, identity, operation string, limit int, period time.Duration) (RateLimitDecision, error) {
	if e == nil {
		return RateLimitDecision{}, ErrEngineNotReady
	}
	return e.allow(ctx, identity, operation, int64(limit), period, e.config.Failure.RateLimit == FailClosed)
}

func (e *Engine) allow(ctx context.Context, identity, operation string, limit int64, period time.Duration, failClosed bool) (RateLimitDecision, error) {
	res, err := internalflows.RunRateLimit(ctx, identity, operation, limit, period, failClosed, e.deps.RateLimit)
	if err != nil {
		return RateLimitDecision{}, err
	}
	return RateLimitDecision{
		Operation:  operation,
		Identity:   res.Identity,
		Allowed:    res.Allowed,
		Count:      res.Count,
		Limit:      res.Limit,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
		Anonymous:  res.Anonymous,
		Degraded:   res.Degraded,
	}, nil
}
