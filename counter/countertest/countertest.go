// Package countertest is a conformance suite for counter.Store implementations.
package countertest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/counter"
)

// Harness is what a backend test supplies to [Run].
type Harness struct {
	Store counter.Store
	// Advance moves the store's notion of time forward.
	Advance func(d time.Duration)
}

// Factory builds a fresh, empty harness for one subtest.
type Factory func(t *testing.T) Harness

// Options tunes the suite for slower backends.
type Options struct {
	// Concurrency is the number of parallel increments in the race check.
	// Zero uses 50.
	Concurrency int
}

// Run exercises the full store contract.
func Run(t *testing.T, factory Factory, opts Options) {
	t.Helper()
	if opts.Concurrency <= 0 {
		opts.Concurrency = 50
	}

	t.Run("GetAbsent", func(t *testing.T) {
		h := factory(t)
		count, found, err := h.Store.Get(context.Background(), "absent")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if found || count != 0 {
			t.Fatalf("expected absent, got count=%d found=%v", count, found)
		}
		ttl, err := h.Store.RemainingTTL(context.Background(), "absent")
		if err != nil {
			t.Fatalf("RemainingTTL: %v", err)
		}
		if ttl != 0 {
			t.Fatalf("expected zero ttl for absent key, got %v", ttl)
		}
	})

	t.Run("CreateAppliesTTL", func(t *testing.T) {
		h := factory(t)
		ctx := context.Background()

		n, err := h.Store.IncrementOrCreate(ctx, "k", 1, time.Minute)
		if err != nil {
			t.Fatalf("IncrementOrCreate: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1, got %d", n)
		}
		ttl, err := h.Store.RemainingTTL(ctx, "k")
		if err != nil {
			t.Fatalf("RemainingTTL: %v", err)
		}
		if ttl <= 59*time.Second || ttl > time.Minute {
			t.Fatalf("expected ttl close to 1m, got %v", ttl)
		}
	})

	t.Run("IncrementKeepsTTL", func(t *testing.T) {
		h := factory(t)
		ctx := context.Background()

		if _, err := h.Store.IncrementOrCreate(ctx, "k", 1, time.Minute); err != nil {
			t.Fatalf("create: %v", err)
		}
		h.Advance(20 * time.Second)
		n, err := h.Store.IncrementOrCreate(ctx, "k", 2, time.Hour)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if n != 3 {
			t.Fatalf("expected 3, got %d", n)
		}
		ttl, _ := h.Store.RemainingTTL(ctx, "k")
		if ttl > 41*time.Second || ttl < 39*time.Second {
			t.Fatalf("expected ttl near 40s, got %v", ttl)
		}
		count, found, err := h.Store.Get(ctx, "k")
		if err != nil || !found || count != 3 {
			t.Fatalf("Get = %d,%v,%v; want 3,true,nil", count, found, err)
		}
	})

	t.Run("ExpiredIsAbsent", func(t *testing.T) {
		h := factory(t)
		ctx := context.Background()

		if _, err := h.Store.IncrementOrCreate(ctx, "k", 4, time.Minute); err != nil {
			t.Fatalf("create: %v", err)
		}
		h.Advance(time.Minute + time.Second)

		if _, found, _ := h.Store.Get(ctx, "k"); found {
			t.Fatal("expected expired key to be absent")
		}
		if ttl, _ := h.Store.RemainingTTL(ctx, "k"); ttl != 0 {
			t.Fatalf("expected zero ttl after expiry, got %v", ttl)
		}
		n, err := h.Store.IncrementOrCreate(ctx, "k", 1, time.Minute)
		if err != nil {
			t.Fatalf("recreate: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected fresh count 1 after expiry, got %d", n)
		}
	})

	t.Run("ExpireRearms", func(t *testing.T) {
		h := factory(t)
		ctx := context.Background()

		if _, err := h.Store.IncrementOrCreate(ctx, "k", 1, time.Minute); err != nil {
			t.Fatalf("create: %v", err)
		}
		h.Advance(50 * time.Second)
		if err := h.Store.Expire(ctx, "k", 5*time.Minute); err != nil {
			t.Fatalf("Expire: %v", err)
		}
		ttl, _ := h.Store.RemainingTTL(ctx, "k")
		if ttl < 299*time.Second || ttl > 5*time.Minute {
			t.Fatalf("expected ttl re-armed near 5m, got %v", ttl)
		}
	})

	t.Run("ExpireAbsentIsNoop", func(t *testing.T) {
		h := factory(t)
		ctx := context.Background()

		if err := h.Store.Expire(ctx, "missing", time.Minute); err != nil {
			t.Fatalf("Expire: %v", err)
		}
		if _, found, _ := h.Store.Get(ctx, "missing"); found {
			t.Fatal("Expire must not create a key")
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		h := factory(t)
		ctx := context.Background()

		if _, err := h.Store.IncrementOrCreate(ctx, "k", 1, time.Minute); err != nil {
			t.Fatalf("create: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := h.Store.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete #%d: %v", i+1, err)
			}
		}
		if _, found, _ := h.Store.Get(ctx, "k"); found {
			t.Fatal("expected deleted key to be absent")
		}
	})

	t.Run("RejectsInvalidArguments", func(t *testing.T) {
		h := factory(t)
		ctx := context.Background()

		if _, err := h.Store.IncrementOrCreate(ctx, "", 1, time.Minute); !errors.Is(err, counter.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey, got %v", err)
		}
		if _, err := h.Store.IncrementOrCreate(ctx, "k", 1, 0); !errors.Is(err, counter.ErrInvalidTTL) {
			t.Fatalf("expected ErrInvalidTTL, got %v", err)
		}
		if err := h.Store.Expire(ctx, "k", -time.Second); !errors.Is(err, counter.ErrInvalidTTL) {
			t.Fatalf("expected ErrInvalidTTL from Expire, got %v", err)
		}
	})

	t.Run("ConcurrentIncrementsNeverLoseUpdates", func(t *testing.T) {
		h := factory(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, opts.Concurrency)
		for i := 0; i < opts.Concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := h.Store.IncrementOrCreate(ctx, "race", 1, time.Minute); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent increment: %v", err)
		}

		count, found, err := h.Store.Get(ctx, "race")
		if err != nil || !found {
			t.Fatalf("Get after race = found:%v err:%v", found, err)
		}
		if count != int64(opts.Concurrency) {
			t.Fatalf("expected %d, got %d", opts.Concurrency, count)
		}
	})
}
