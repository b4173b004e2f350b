// Package config loads goguard binary configuration: defaults, then an
// optional YAML file, then GOGUARD_ environment variables, then flags.
package config

import (
	"fmt"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: GOGUARD_LOCKOUT__WINDOW=10m.
const EnvPrefix = "GOGUARD_"

// Config holds all configuration for the goguard binary.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Store     StoreConfig     `koanf:"store"`
	Lockout   LockoutConfig   `koanf:"lockout"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Failure   FailureConfig   `koanf:"failure"`
	Auth      AuthConfig      `koanf:"auth"`
	Audit     AuditConfig     `koanf:"audit"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type ServerConfig struct {
	Listen          string        `koanf:"listen"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// StoreConfig selects the counter backend. Driver is one of memory, redis,
// bolt, postgres or sqlite.
type StoreConfig struct {
	Driver           string        `koanf:"driver"`
	RedisAddr        string        `koanf:"redis_addr"`
	RedisPassword    string        `koanf:"redis_password"`
	RedisDB          int           `koanf:"redis_db"`
	Path             string        `koanf:"path"`
	DSN              string        `koanf:"dsn"`
	OperationTimeout time.Duration `koanf:"operation_timeout"`
	SweepSchedule    string        `koanf:"sweep_schedule"`
	Breaker          bool          `koanf:"breaker"`
	Tracing          bool          `koanf:"tracing"`
}

type LockoutConfig struct {
	MaxFailedAttempts     int           `koanf:"max_failed_attempts"`
	Window                time.Duration `koanf:"window"`
	ExtendOnLockedAttempt bool          `koanf:"extend_on_locked_attempt"`
}

type RuleConfig struct {
	Limit      int           `koanf:"limit"`
	Period     time.Duration `koanf:"period"`
	FailClosed bool          `koanf:"fail_closed"`
}

type RateLimitConfig struct {
	Rules map[string]RuleConfig `koanf:"rules"`
}

type FailureConfig struct {
	Login     string `koanf:"login"`
	RateLimit string `koanf:"rate_limit"`
}

type AuthConfig struct {
	CredentialsFile string        `koanf:"credentials_file"`
	TokenSecret     string        `koanf:"token_secret"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	Issuer          string        `koanf:"issuer"`
}

type AuditConfig struct {
	Enabled    bool   `koanf:"enabled"`
	BufferSize int    `koanf:"buffer_size"`
	DropIfFull bool   `koanf:"drop_if_full"`
	JSONFile   string `koanf:"json_file"`
	SentryDSN  string `koanf:"sentry_dsn"`
	MQTTBroker string `koanf:"mqtt_broker"`
	MQTTTopic  string `koanf:"mqtt_topic"`
}

type MetricsConfig struct {
	Enabled           bool `koanf:"enabled"`
	LatencyHistograms bool `koanf:"latency_histograms"`
}

// FlagKeys maps command line flag names to configuration keys. Flags not
// listed here are ignored by [Load].
var FlagKeys = map[string]string{
	"listen":            "server.listen",
	"log-level":         "logging.level",
	"log-format":        "logging.format",
	"log-file":          "logging.file",
	"store":             "store.driver",
	"redis-addr":        "store.redis_addr",
	"store-path":        "store.path",
	"store-dsn":         "store.dsn",
	"credentials":       "auth.credentials_file",
	"max-failed":        "lockout.max_failed_attempts",
	"lockout-window":    "lockout.window",
	"login-fail-mode":   "failure.login",
	"audit":             "audit.enabled",
	"latency-histogram": "metrics.latency_histograms",
}

// Load reads configuration with priority: flags > env > yaml file > defaults.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	engine := goGuard.DefaultConfig()

	defaults := map[string]any{
		"server.listen":                    "127.0.0.1:8080",
		"server.read_timeout":              "15s",
		"server.write_timeout":             "30s",
		"server.shutdown_timeout":          "10s",
		"logging.level":                    "info",
		"logging.format":                   "json",
		"store.driver":                     "memory",
		"store.redis_addr":                 "127.0.0.1:6379",
		"store.path":                       "goguard.db",
		"store.operation_timeout":          engine.Store.OperationTimeout.String(),
		"store.sweep_schedule":             "@every 1m",
		"store.breaker":                    true,
		"store.tracing":                    false,
		"lockout.max_failed_attempts":      engine.Lockout.MaxFailedAttempts,
		"lockout.window":                   engine.Lockout.Window.String(),
		"lockout.extend_on_locked_attempt": engine.Lockout.ExtendOnLockedAttempt,
		"failure.login":                    engine.Failure.Login.String(),
		"failure.rate_limit":               engine.Failure.RateLimit.String(),
		"auth.credentials_file":            "users.yaml",
		"auth.token_ttl":                   "15m",
		"auth.issuer":                      "goguard",
		"audit.enabled":                    engine.Audit.Enabled,
		"audit.buffer_size":                engine.Audit.BufferSize,
		"audit.drop_if_full":               engine.Audit.DropIfFull,
		"audit.mqtt_topic":                 "goguard/audit",
		"metrics.enabled":                  engine.Metrics.Enabled,
		"metrics.latency_histograms":       engine.Metrics.EnableLatencyHistograms,
	}
	for op, rule := range engine.RateLimit.Rules {
		defaults["rate_limit.rules."+op+".limit"] = rule.Limit
		defaults["rate_limit.rules."+op+".period"] = rule.Period.String()
		defaults["rate_limit.rules."+op+".fail_closed"] = rule.FailClosed
	}

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// EngineConfig converts the loaded values into a validated engine Config.
func (c *Config) EngineConfig() (goGuard.Config, error) {
	cfg := goGuard.DefaultConfig()

	cfg.Lockout.MaxFailedAttempts = c.Lockout.MaxFailedAttempts
	cfg.Lockout.Window = c.Lockout.Window
	cfg.Lockout.ExtendOnLockedAttempt = c.Lockout.ExtendOnLockedAttempt

	cfg.RateLimit.Rules = make(map[string]goGuard.RateLimitRule, len(c.RateLimit.Rules))
	for op, r := range c.RateLimit.Rules {
		cfg.RateLimit.Rules[op] = goGuard.RateLimitRule{Limit: r.Limit, Period: r.Period, FailClosed: r.FailClosed}
	}

	cfg.Store.OperationTimeout = c.Store.OperationTimeout

	var err error
	if cfg.Failure.Login, err = goGuard.ParseFailMode(c.Failure.Login); err != nil {
		return goGuard.Config{}, fmt.Errorf("failure.login: %w", err)
	}
	if cfg.Failure.RateLimit, err = goGuard.ParseFailMode(c.Failure.RateLimit); err != nil {
		return goGuard.Config{}, fmt.Errorf("failure.rate_limit: %w", err)
	}

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Audit.DropIfFull = c.Audit.DropIfFull
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms

	if err := cfg.Validate(); err != nil {
		return goGuard.Config{}, err
	}
	return cfg, nil
}
