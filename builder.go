package goGuard

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGuard/counter"
	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/internal/rate"
)

// Builder assembles an [Engine].
//
// A Builder is configured during initialization and is single-use: Build
// fails on a second call.
type Builder struct {
	config Config
	store  counter.Store
	redis  redis.UniversalClient

	verifier  Verifier
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the counter store shared by lockout and rate limiting.
func (b *Builder) WithStore(store counter.Store) *Builder {
	b.store = store
	return b
}

// WithRedis uses client as the counter store. It is ignored when
// [Builder.WithStore] was also called.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithVerifier sets the credential verifier consulted by [Engine.Login].
func (b *Builder) WithVerifier(v Verifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink sets the audit destination. Auditing also has to be enabled
// in Config.Audit.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock used for latency and audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters behind [Engine.MetricsSnapshot].
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles per-operation latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil && b.redis != nil {
		store = counter.NewRedisStore(b.redis)
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if b.verifier == nil {
		return nil, ErrVerifierRequired
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:   cfg,
		store:    store,
		verifier: b.verifier,
		logger:   logger,
		now:      now,
	}
	engine.tracker = limiters.NewAttemptTracker(store, cfg.Lockout.KeyPrefix, cfg.Lockout.Window)
	engine.policy = limiters.LockoutPolicy{
		Threshold:             int64(cfg.Lockout.MaxFailedAttempts),
		Window:                cfg.Lockout.Window,
		ExtendOnLockedAttempt: cfg.Lockout.ExtendOnLockedAttempt,
	}
	engine.limiter = rate.New(store, cfg.RateLimit.KeyPrefix)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.deps = engine.flowDeps()

	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		logger.Warn("goGuard: config lint",
			slog.String("code", w.Code),
			slog.String("severity", w.Severity.String()),
			slog.String("message", w.Message))
	}

	b.built = true

	return engine, nil
}
