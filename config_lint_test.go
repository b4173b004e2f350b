package goGuard

import (
	"strings"
	"testing"
	"time"
)

func TestLint_DefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	codes := cfg.Lint().Codes()

	// Fail-open login is the documented default and is flagged, nothing worse.
	if !containsCode(codes, "login_fail_open") {
		t.Error("expected login_fail_open for the default config")
	}
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Errorf("default config should have no HIGH findings: %v", err)
	}
}

func TestLint_HighSecurityConfigMinimalWarnings(t *testing.T) {
	cfg := HighSecurityConfig()
	codes := cfg.Lint().Codes()

	unwanted := []string{
		"login_fail_open",
		"audit_disabled",
		"rate_limits_disabled",
		"store_timeout_unbounded",
	}
	for _, code := range unwanted {
		if containsCode(codes, code) {
			t.Errorf("HighSecurityConfig should not produce warning %q", code)
		}
	}
}

func TestLint_Findings(t *testing.T) {
	tests := []struct {
		code   string
		mutate func(*Config)
	}{
		{"lockout_threshold_high", func(c *Config) { c.Lockout.MaxFailedAttempts = 50 }},
		{"lockout_window_short", func(c *Config) { c.Lockout.Window = 5 * time.Second }},
		{"lockout_window_long", func(c *Config) { c.Lockout.Window = 48 * time.Hour }},
		{"lockout_extend_on_attempt", func(c *Config) { c.Lockout.ExtendOnLockedAttempt = true }},
		{"rate_limits_disabled", func(c *Config) { c.RateLimit.Rules = nil }},
		{"rate_limit_period_tiny", func(c *Config) {
			c.RateLimit.Rules["burst"] = RateLimitRule{Limit: 1, Period: 100 * time.Millisecond}
		}},
		{"store_timeout_unbounded", func(c *Config) { c.Store.OperationTimeout = 0 }},
		{"store_timeout_long", func(c *Config) { c.Store.OperationTimeout = time.Minute }},
		{"audit_blocking", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.DropIfFull = false
		}},
		{"metrics_disabled", func(c *Config) { c.Metrics.Enabled = false }},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			if !containsCode(cfg.Lint().Codes(), tt.code) {
				t.Fatalf("expected %s warning", tt.code)
			}
		})
	}
}

func TestLint_BySeverityAndAsError(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit.Rules = nil
	cfg.Store.OperationTimeout = 0
	ws := cfg.Lint()

	high := ws.BySeverity(LintHigh)
	if len(high) != 2 {
		t.Fatalf("expected 2 HIGH findings, got %v", high.Codes())
	}
	for _, w := range high {
		if w.Severity != LintHigh {
			t.Fatalf("BySeverity returned %s finding", w.Severity)
		}
	}
	if len(ws.BySeverity(LintInfo)) != len(ws) {
		t.Fatal("BySeverity(LintInfo) should return everything")
	}

	err := ws.AsError(LintHigh)
	if err == nil {
		t.Fatal("expected AsError to report HIGH findings")
	}
	if !stringsContainAll(err.Error(), "rate_limits_disabled", "store_timeout_unbounded") {
		t.Fatalf("error should name every HIGH code: %v", err)
	}
}

func stringsContainAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
