package goGuard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/counter"
)

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Lockout.MaxFailedAttempts != 5 || cfg.Lockout.Window != 300*time.Second {
		t.Fatalf("unexpected lockout defaults %+v", cfg.Lockout)
	}
	rule, ok := cfg.RateLimit.Rules["dashboard"]
	if !ok || rule.Limit != 10 || rule.Period != 60*time.Second {
		t.Fatalf("unexpected dashboard rule %+v", rule)
	}
	if cfg.Failure.Login != FailOpen {
		t.Fatalf("login should fail open by default, got %s", cfg.Failure.Login)
	}

	hs := HighSecurityConfig()
	if err := hs.Validate(); err != nil {
		t.Fatalf("high security config must validate: %v", err)
	}
	if hs.Failure.Login != FailClosed || !hs.Audit.Enabled {
		t.Fatalf("unexpected high security config %+v", hs)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "threshold of one",
			mutate:    func(c *Config) { c.Lockout.MaxFailedAttempts = 1 },
			wantValid: true,
		},
		{
			name:   "zero threshold",
			mutate: func(c *Config) { c.Lockout.MaxFailedAttempts = 0 },
		},
		{
			name:   "zero window",
			mutate: func(c *Config) { c.Lockout.Window = 0 },
		},
		{
			name:   "prefix with colon",
			mutate: func(c *Config) { c.Lockout.KeyPrefix = "lf:x" },
		},
		{
			name: "shared prefix",
			mutate: func(c *Config) {
				c.Lockout.KeyPrefix = "guard"
				c.RateLimit.KeyPrefix = "guard"
			},
		},
		{
			name:   "rule with zero limit",
			mutate: func(c *Config) { c.RateLimit.Rules["reports"] = RateLimitRule{Period: time.Minute} },
		},
		{
			name:   "rule with zero period",
			mutate: func(c *Config) { c.RateLimit.Rules["reports"] = RateLimitRule{Limit: 3} },
		},
		{
			name:   "rule name with space",
			mutate: func(c *Config) { c.RateLimit.Rules["my reports"] = RateLimitRule{Limit: 3, Period: time.Minute} },
		},
		{
			name:      "no rules",
			mutate:    func(c *Config) { c.RateLimit.Rules = nil },
			wantValid: true,
		},
		{
			name:   "negative store timeout",
			mutate: func(c *Config) { c.Store.OperationTimeout = -time.Second },
		},
		{
			name:   "unknown fail mode",
			mutate: func(c *Config) { c.Failure.RateLimit = FailMode(7) },
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseFailMode(t *testing.T) {
	for in, want := range map[string]FailMode{"open": FailOpen, "": FailOpen, "closed": FailClosed} {
		got, err := ParseFailMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseFailMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFailMode("ajar"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestBuilderRequirements(t *testing.T) {
	verifier := VerifierFunc(func(context.Context, string, string) (*Principal, error) { return nil, nil })
	store := counter.NewMemoryStore(nil)

	if _, err := New().WithVerifier(verifier).Build(); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
	if _, err := New().WithStore(store).Build(); !errors.Is(err, ErrVerifierRequired) {
		t.Fatalf("expected ErrVerifierRequired, got %v", err)
	}

	bad := DefaultConfig()
	bad.Lockout.Window = 0
	if _, err := New().WithConfig(bad).WithStore(store).WithVerifier(verifier).Build(); err == nil {
		t.Fatal("expected invalid config to fail the build")
	}

	b := New().WithStore(store).WithVerifier(verifier)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	cfg := DefaultConfig()
	engine, err := New().
		WithConfig(cfg).
		WithStore(counter.NewMemoryStore(nil)).
		WithVerifier(VerifierFunc(func(context.Context, string, string) (*Principal, error) { return nil, nil })).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	cfg.RateLimit.Rules["dashboard"] = RateLimitRule{Limit: 1, Period: time.Second}
	if got := engine.Config().RateLimit.Rules["dashboard"].Limit; got != DefaultDashboardLimit {
		t.Fatalf("engine config must not alias the caller's rules, got limit %d", got)
	}
}
