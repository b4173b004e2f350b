package goGuard

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goGuard/counter"
	internalflows "github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/internal/rate"
)

// Engine enforces login lockout and per-operation rate limits on top of a
// shared [counter.Store].
//
// An Engine is built once through [Builder.Build]; its methods are safe for
// concurrent use.
type Engine struct {
	config   Config
	store    counter.Store
	tracker  *limiters.AttemptTracker
	policy   limiters.LockoutPolicy
	limiter  *rate.Limiter
	verifier Verifier
	audit    *auditDispatcher
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
	deps     internalflows.Deps
}

// Close drains queued audit events. The counter store is owned by the caller
// and is left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Metrics exposes the live counters for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot returns a point-in-time copy of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
			LatencySum: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}

func (e *Engine) flowDeps() internalflows.Deps {
	metricInc := func(id int) {
		e.metricInc(MetricID(id))
	}

	login := internalflows.LoginDeps{
		Policy:           e.policy,
		FailClosed:       e.config.Failure.Login == FailClosed,
		OperationTimeout: e.config.Store.OperationTimeout,

		Normalize:     limiters.NormalizeIdentity,
		CurrentState:  e.tracker.CurrentState,
		RecordFailure: e.tracker.RecordFailure,
		RecordSuccess: e.tracker.RecordSuccess,
		Rearm:         e.tracker.Rearm,
		Remaining:     e.tracker.Remaining,
		Verify:        e.verify,

		Now:       e.now,
		MetricInc: metricInc,
		ObserveLatency: func(d time.Duration) {
			e.metrics.Observe(MetricLoginLatency, d)
		},
		EmitAudit: e.emitAudit,
		Warn:      e.warn,

		Metrics: internalflows.LoginMetrics{
			LoginAuthenticated: int(MetricLoginAuthenticated),
			LoginRejected:      int(MetricLoginRejected),
			LoginLockedOut:     int(MetricLoginLockedOut),
			LoginInvalidInput:  int(MetricLoginInvalidInput),
			LockoutTriggered:   int(MetricLockoutTriggered),
			StoreUnavailable:   int(MetricStoreUnavailable),
			FailOpen:           int(MetricFailOpen),
			VerifierError:      int(MetricVerifierError),
		},
		Events: internalflows.LoginEvents{
			Authenticated:    AuditLoginAuthenticated,
			Rejected:         AuditLoginRejected,
			LockedOut:        AuditLoginLockedOut,
			LockoutTriggered: AuditLockoutTriggered,
			InvalidInput:     AuditLoginInvalidInput,
			StoreUnavailable: AuditStoreUnavailable,
			VerifierError:    AuditVerifierError,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:      ErrEngineNotReady,
			StoreUnavailable:    ErrStoreUnavailable,
			VerifierUnavailable: ErrVerifierUnavailable,
		},
	}

	rateLimit := internalflows.RateLimitDeps{
		OperationTimeout: e.config.Store.OperationTimeout,
		Normalize:        limiters.NormalizeIdentity,
		Allow:            e.limiter.Allow,
		MetricInc:        metricInc,
		EmitAudit:        e.emitAudit,
		Warn:             e.warn,
		Metrics: internalflows.RateLimitMetrics{
			Allowed:          int(MetricRateLimitAllowed),
			Exceeded:         int(MetricRateLimitExceeded),
			StoreUnavailable: int(MetricStoreUnavailable),
			FailOpen:         int(MetricFailOpen),
		},
		Events: internalflows.RateLimitEvents{
			Exceeded:         AuditRateLimitExceeded,
			StoreUnavailable: AuditStoreUnavailable,
		},
		Errors: internalflows.RateLimitErrors{
			EngineNotReady:   ErrEngineNotReady,
			InvalidInput:     ErrInvalidInput,
			StoreUnavailable: ErrStoreUnavailable,
		},
	}

	status := internalflows.StatusDeps{
		Policy:               e.policy,
		OperationTimeout:     e.config.Store.OperationTimeout,
		Normalize:            limiters.NormalizeIdentity,
		CurrentState:         e.tracker.CurrentState,
		Clear:                e.tracker.RecordSuccess,
		MetricInc:            metricInc,
		EmitAudit:            e.emitAudit,
		LockoutClearedMetric: int(MetricLockoutCleared),
		LockoutClearedEvent:  AuditLockoutCleared,
		Errors: internalflows.StatusErrors{
			EngineNotReady:   ErrEngineNotReady,
			InvalidInput:     ErrInvalidInput,
			StoreUnavailable: ErrStoreUnavailable,
		},
	}

	return internalflows.Deps{
		Login:     login,
		RateLimit: rateLimit,
		Status:    status,
	}
}

func (e *Engine) verify(ctx context.Context, identity, secret string) (*internalflows.LoginPrincipal, error) {
	p, err := e.verifier.Verify(ctx, identity, secret)
	if err != nil || p == nil {
		return nil, err
	}
	return &internalflows.LoginPrincipal{ID: p.ID, Attributes: p.Attributes}, nil
}
