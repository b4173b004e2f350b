package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrEthical07/goGuard/counter"
	"github.com/MrEthical07/goGuard/internal/config"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

// backend is an opened counter store plus the resources that go with it.
type backend struct {
	store   counter.Store
	sweeper *counter.Sweeper
	health  func(context.Context) error
	closers []func() error
}

func (b *backend) Close(ctx context.Context) {
	if b.sweeper != nil {
		b.sweeper.Stop(ctx)
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// openBackend builds the configured store and wraps it in the tracing and
// circuit breaker decorators. Stores without native expiry get a sweeper.
func openBackend(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*backend, error) {
	b := &backend{}
	driver := strings.ToLower(cfg.Driver)

	var (
		base      counter.Store
		sweepable counter.Sweepable
	)
	switch driver {
	case "memory":
		mem := counter.NewMemoryStore(nil)
		base, sweepable = mem, mem

	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		base = counter.NewRedisStore(client)
		b.health = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		b.closers = append(b.closers, client.Close)

	case "bolt":
		store, err := counter.OpenBoltStore(cfg.Path, counter.BoltOptions{})
		if err != nil {
			return nil, err
		}
		base, sweepable = store, store
		b.closers = append(b.closers, store.Close)

	case "sqlite", "postgres":
		open := counter.OpenSQLite
		dsn := cfg.Path
		if driver == "postgres" {
			open = counter.OpenPostgres
			dsn = cfg.DSN
		}
		store, db, err := open(ctx, dsn, counter.SQLOptions{})
		if err != nil {
			return nil, err
		}
		base, sweepable = store, store
		b.health = db.PingContext
		b.closers = append(b.closers, db.Close)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	store := base
	if cfg.Tracing {
		store = counter.NewTracedStore(store, driver, otel.GetTracerProvider())
	}
	if cfg.Breaker {
		bc := counter.DefaultBreakerConfig()
		bc.Name = "goguard-" + driver
		bc.Logger = logger
		store = counter.NewBreakerStore(store, bc)
	}
	b.store = store

	if sweepable != nil && cfg.SweepSchedule != "" {
		sweeper, err := counter.NewSweeper(sweepable, cfg.SweepSchedule, logger)
		if err != nil {
			b.Close(ctx)
			return nil, err
		}
		b.sweeper = sweeper
	}

	return b, nil
}
