package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
)

// RateLimitMetrics carries metric IDs needed by the rate limit flow.
type RateLimitMetrics struct {
	Allowed          int
	Exceeded         int
	StoreUnavailable int
	FailOpen         int
}

// RateLimitEvents carries audit event names used by the rate limit flow.
type RateLimitEvents struct {
	Exceeded         string
	StoreUnavailable string
}

// RateLimitErrors carries host-level sentinel errors used by the rate limit flow.
type RateLimitErrors struct {
	EngineNotReady   error
	InvalidInput     error
	StoreUnavailable error
}

// RateLimitResult is the flow-local rate limit response shape.
type RateLimitResult struct {
	rate.Decision
	Identity string
	Degraded bool
}

// RateLimitDeps captures rate limit dependencies.
type RateLimitDeps struct {
	OperationTimeout time.Duration

	Normalize func(string) (string, bool)
	Allow     func(context.Context, string, string, int64, time.Duration) (rate.Decision, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics RateLimitMetrics
	Events  RateLimitEvents
	Errors  RateLimitErrors
}

// RunRateLimit counts one request for (identity, operation). A blank identity
// is anonymous and always allowed. failClosed decides the outcome when the
// counter store cannot be reached.
func RunRateLimit(ctx context.Context, rawIdentity, operation string, limit int64, window time.Duration, failClosed bool, deps RateLimitDeps) (RateLimitResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.Normalize == nil || deps.Allow == nil {
		return RateLimitResult{}, deps.Errors.EngineNotReady
	}

	identity := ""
	if strings.TrimSpace(rawIdentity) != "" {
		normalized, ok := deps.Normalize(rawIdentity)
		if !ok {
			return RateLimitResult{}, deps.Errors.InvalidInput
		}
		identity = normalized
	}

	var decision rate.Decision
	err := mutate(ctx, deps.OperationTimeout, func(c context.Context) error {
		var aerr error
		decision, aerr = deps.Allow(c, identity, operation, limit, window)
		return aerr
	})
	if err != nil {
		if isArgumentError(err) {
			return RateLimitResult{}, fmt.Errorf("%w: %v", deps.Errors.InvalidInput, err)
		}
		deps.MetricInc(deps.Metrics.StoreUnavailable)
		deps.Warn("goGuard: counter store unavailable during rate limit",
			"operation", operation,
			"fail_closed", failClosed,
			"error", err,
		)
		deps.EmitAudit(ctx, deps.Events.StoreUnavailable, false, identity, err, func() map[string]string {
			return map[string]string{"stage": "increment", "operation": operation}
		})
		if failClosed {
			return RateLimitResult{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
		}
		deps.MetricInc(deps.Metrics.FailOpen)
		return RateLimitResult{
			Decision: rate.Decision{Allowed: true, Limit: limit, Remaining: limit},
			Identity: identity,
			Degraded: true,
		}, nil
	}

	if !decision.Allowed {
		deps.MetricInc(deps.Metrics.Exceeded)
		deps.EmitAudit(ctx, deps.Events.Exceeded, false, identity, nil, func() map[string]string {
			return map[string]string{
				"operation":     operation,
				"count":         fmt.Sprintf("%d", decision.Count),
				"limit":         fmt.Sprintf("%d", limit),
				"retry_after_s": fmt.Sprintf("%d", ceilSeconds(decision.RetryAfter)),
			}
		})
	} else {
		deps.MetricInc(deps.Metrics.Allowed)
	}

	return RateLimitResult{Decision: decision, Identity: identity}, nil
}

func isArgumentError(err error) bool {
	return errors.Is(err, rate.ErrInvalidLimit) || errors.Is(err, rate.ErrInvalidOperation)
}
