package goGuard

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Config is the complete engine configuration.
//
// Config values are copied into the engine at Build time and treated as
// immutable afterwards.
type Config struct {
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Failure   FailureConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls brute-force login protection.
type LockoutConfig struct {
	// MaxFailedAttempts is the failure count at which an identity locks.
	MaxFailedAttempts int
	// Window is both the failure-counting window and the lockout duration.
	Window time.Duration
	// ExtendOnLockedAttempt restarts the full window on every attempt made
	// while locked. Off by default: the lock runs down from the crossing.
	ExtendOnLockedAttempt bool
	// KeyPrefix namespaces attempt records in the counter store.
	KeyPrefix string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitRule is the fixed window for one named operation.
type RateLimitRule struct {
	Limit  int
	Period time.Duration
	// FailClosed rejects requests for this operation while the counter store
	// is unreachable, overriding FailureConfig.RateLimit.
	FailClosed bool
}

// RateLimitConfig holds the per-operation rules used by [Engine.Allow].
type RateLimitConfig struct {
	KeyPrefix string
	Rules     map[string]RateLimitRule
}

/*
====================================
STORE / FAILURE CONFIG
====================================
*/

// StoreConfig tunes counter store calls made by the engine.
type StoreConfig struct {
	// OperationTimeout bounds each store call. Writes are additionally
	// detached from the caller's cancellation.
	OperationTimeout time.Duration
}

// FailMode decides what happens when the counter store cannot be reached.
type FailMode int

const (
	// FailOpen proceeds without the protection and marks the result degraded.
	FailOpen FailMode = iota
	// FailClosed rejects the request with [ErrStoreUnavailable].
	FailClosed
)

func (m FailMode) String() string {
	switch m {
	case FailOpen:
		return "open"
	case FailClosed:
		return "closed"
	default:
		return fmt.Sprintf("FailMode(%d)", int(m))
	}
}

// ParseFailMode parses "open" or "closed".
func ParseFailMode(s string) (FailMode, error) {
	switch s {
	case "open", "":
		return FailOpen, nil
	case "closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("unknown fail mode %q", s)
	}
}

// FailureConfig is the single store-outage policy for the engine.
type FailureConfig struct {
	Login     FailMode
	RateLimit FailMode
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls async audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// Default lockout and rate limit values.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutWindow     = 300 * time.Second
	DefaultDashboardLimit    = 10
	DefaultDashboardPeriod   = 60 * time.Second
)

// DefaultConfig returns the baseline configuration: 5 failures lock for 300s,
// the dashboard allows 10 requests per 60s, and store outages fail open.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			MaxFailedAttempts:     DefaultMaxFailedAttempts,
			Window:                DefaultLockoutWindow,
			ExtendOnLockedAttempt: false,
			KeyPrefix:             "lf",
		},
		RateLimit: RateLimitConfig{
			KeyPrefix: "rl",
			Rules: map[string]RateLimitRule{
				"dashboard": {Limit: DefaultDashboardLimit, Period: DefaultDashboardPeriod},
				"resources": {Limit: 20, Period: 60 * time.Second},
			},
		},
		Store: StoreConfig{
			OperationTimeout: 500 * time.Millisecond,
		},
		Failure: FailureConfig{
			Login:     FailOpen,
			RateLimit: FailOpen,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// HighSecurityConfig fails closed on store outages, audits everything and
// keeps the default thresholds.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.Failure.Login = FailClosed
	cfg.Failure.RateLimit = FailClosed
	cfg.Audit.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.RateLimit.Rules != nil {
		out.RateLimit.Rules = make(map[string]RateLimitRule, len(cfg.RateLimit.Rules))
		for name, rule := range cfg.RateLimit.Rules {
			out.RateLimit.Rules[name] = rule
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

var keyPartPattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.Lockout.MaxFailedAttempts <= 0 {
		return errors.New("Lockout MaxFailedAttempts must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}
	if !keyPartPattern.MatchString(c.Lockout.KeyPrefix) {
		return errors.New("Lockout KeyPrefix must match [a-z0-9_.-]+")
	}
	if !keyPartPattern.MatchString(c.RateLimit.KeyPrefix) {
		return errors.New("RateLimit KeyPrefix must match [a-z0-9_.-]+")
	}
	if c.Lockout.KeyPrefix == c.RateLimit.KeyPrefix {
		return errors.New("Lockout and RateLimit key prefixes must differ")
	}

	for name, rule := range c.RateLimit.Rules {
		if !keyPartPattern.MatchString(name) {
			return fmt.Errorf("RateLimit rule name %q must match [a-z0-9_.-]+", name)
		}
		if rule.Limit <= 0 {
			return fmt.Errorf("RateLimit rule %q Limit must be > 0", name)
		}
		if rule.Period <= 0 {
			return fmt.Errorf("RateLimit rule %q Period must be > 0", name)
		}
	}

	if c.Store.OperationTimeout < 0 {
		return errors.New("Store OperationTimeout must be >= 0")
	}
	if c.Failure.Login != FailOpen && c.Failure.Login != FailClosed {
		return errors.New("Failure Login mode is invalid")
	}
	if c.Failure.RateLimit != FailOpen && c.Failure.RateLimit != FailClosed {
		return errors.New("Failure RateLimit mode is invalid")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}

/*
====================================
LINT
====================================
*/

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is a valid but questionable setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the ordered result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	hits := ws.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	msg := "config lint:"
	for _, w := range hits {
		msg += fmt.Sprintf(" [%s] %s: %s;", w.Severity, w.Code, w.Message)
	}
	return errors.New(msg)
}

// Lint reports settings that validate but weaken protection.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Lockout.MaxFailedAttempts > 20 {
		add("lockout_threshold_high", LintWarn,
			fmt.Sprintf("MaxFailedAttempts=%d allows many guesses per window", c.Lockout.MaxFailedAttempts))
	}
	if c.Lockout.Window > 0 && c.Lockout.Window < 30*time.Second {
		add("lockout_window_short", LintWarn,
			fmt.Sprintf("Window=%s lets a locked identity retry almost immediately", c.Lockout.Window))
	}
	if c.Lockout.Window > 24*time.Hour {
		add("lockout_window_long", LintInfo,
			"a lockout longer than a day makes targeted denial of service cheap")
	}
	if c.Lockout.ExtendOnLockedAttempt {
		add("lockout_extend_on_attempt", LintInfo,
			"an attacker can keep a victim locked indefinitely by retrying")
	}
	if c.Failure.Login == FailOpen {
		add("login_fail_open", LintWarn,
			"store outages disable lockout enforcement until the store recovers")
	}
	if len(c.RateLimit.Rules) == 0 {
		add("rate_limits_disabled", LintHigh, "no rate limit rules configured")
	}
	names := make([]string, 0, len(c.RateLimit.Rules))
	for name := range c.RateLimit.Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rule := c.RateLimit.Rules[name]
		if rule.Period > 0 && rule.Period < time.Second {
			add("rate_limit_period_tiny", LintWarn,
				fmt.Sprintf("rule %q Period=%s is shorter than store TTL resolution on some backends", name, rule.Period))
		}
	}
	if c.Store.OperationTimeout == 0 {
		add("store_timeout_unbounded", LintHigh,
			"store calls have no timeout; a hung store stalls every login")
	} else if c.Store.OperationTimeout > 5*time.Second {
		add("store_timeout_long", LintWarn,
			fmt.Sprintf("OperationTimeout=%s delays the failure policy", c.Store.OperationTimeout))
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "lockouts and outages are not audited")
	} else if !c.Audit.DropIfFull {
		add("audit_blocking", LintWarn, "a slow audit sink will block login requests")
	}
	if !c.Metrics.Enabled {
		add("metrics_disabled", LintInfo, "metrics are disabled")
	}

	return ws
}
