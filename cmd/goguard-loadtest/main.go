package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/counter"
)

func main() {
	var (
		identities  = flag.Int("identities", 2000, "number of distinct identities")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (login + rate limit)")
		limit       = flag.Int("limit", 10, "rate limit per identity per period")
		period      = flag.Duration("period", time.Minute, "rate limit period")
		qps         = flag.Float64("qps", 0, "global request pacing; 0 runs unpaced")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 || *limit <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, ops and limit must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goGuard.DefaultConfig()
	cfg.Store.OperationTimeout = 0
	cfg.Failure.Login = goGuard.FailClosed
	cfg.Failure.RateLimit = goGuard.FailClosed

	engine, err := goGuard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithVerifier(goGuard.VerifierFunc(func(context.Context, string, string) (*goGuard.Principal, error) {
			return nil, nil
		})).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	var pacer *rate.Limiter
	if *qps > 0 {
		pacer = rate.NewLimiter(rate.Limit(*qps), *concurrency)
	}

	names := make([]string, *identities)
	for i := range names {
		names[i] = fmt.Sprintf("user-%d@loadtest", i)
	}

	loginStats, err := runPhase(ctx, *ops, *concurrency, pacer, func(r *rand.Rand) error {
		res, err := engine.Login(ctx, names[r.Intn(len(names))], "wrong-secret")
		if err != nil {
			return err
		}
		if res.Outcome == goGuard.LoginAuthenticated {
			return errors.New("unexpected authentication")
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "login phase: %v\n", err)
		os.Exit(1)
	}

	var allowed sync.Map
	rateStats, err := runPhase(ctx, *ops, *concurrency, pacer, func(r *rand.Rand) error {
		name := names[r.Intn(len(names))]
		d, err := engine.AllowN(ctx, name, "loadtest", *limit, *period)
		if err != nil {
			return err
		}
		if d.Allowed {
			n, _ := allowed.LoadOrStore(d.Identity, new(atomic.Int64))
			n.(*atomic.Int64).Add(1)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rate limit phase: %v\n", err)
		os.Exit(1)
	}

	// Raw store consistency: concurrent failures on one record must all land.
	store := counter.NewRedisStore(client)
	const hotKey = "lf:loadtest-hot@loadtest"
	_ = store.Delete(ctx, hotKey)
	incrStats, err := runPhase(ctx, *ops, *concurrency, pacer, func(*rand.Rand) error {
		_, err := store.IncrementOrCreate(ctx, hotKey, 1, 5*time.Minute)
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "increment phase: %v\n", err)
		os.Exit(1)
	}
	hot, _, err := store.Get(ctx, hotKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read hot counter: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("allow", rateStats)
	printStats("increment", incrStats)
	fmt.Printf("hot counter=%d failures=%d\n", hot, *ops)

	snap := engine.MetricsSnapshot()
	fmt.Printf("lockouts triggered=%d locked-out answers=%d rejected=%d\n",
		snap.Counters[goGuard.MetricLockoutTriggered],
		snap.Counters[goGuard.MetricLoginLockedOut],
		snap.Counters[goGuard.MetricLoginRejected],
	)

	over := 0
	allowed.Range(func(_, v any) bool {
		if v.(*atomic.Int64).Load() > int64(*limit) {
			over++
		}
		return true
	})
	if hot != int64(*ops) {
		fmt.Fprintf(os.Stderr, "lost updates: counter=%d, expected %d\n", hot, *ops)
		os.Exit(1)
	}
	if over > 0 {
		fmt.Fprintf(os.Stderr, "%d identities were admitted past the limit of %d\n", over, *limit)
		os.Exit(1)
	}
	if got := snap.Counters[goGuard.MetricLockoutTriggered]; got > uint64(*identities) {
		fmt.Fprintf(os.Stderr, "lockout triggered %d times for %d identities\n", got, *identities)
		os.Exit(1)
	}
	fmt.Println("invariants hold")
}

type phaseStats struct {
	total   time.Duration
	ops     int
	p50     time.Duration
	p95     time.Duration
	p99     time.Duration
	opsPerS float64
}

// runPhase spreads ops calls of fn over concurrency workers. The first error
// stops the phase.
func runPhase(ctx context.Context, ops, concurrency int, pacer *rate.Limiter, fn func(*rand.Rand) error) (phaseStats, error) {
	var (
		cursor    atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		seed := time.Now().UnixNano() + int64(w)*7919
		g.Go(func() error {
			r := rand.New(rand.NewSource(seed))
			for {
				if int(cursor.Add(1)) > ops {
					return nil
				}
				if pacer != nil {
					if err := pacer.Wait(gctx); err != nil {
						return err
					}
				}
				t0 := time.Now()
				if err := fn(r); err != nil {
					return err
				}
				d := time.Since(t0)
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return computeStats(time.Since(start), latencies), nil
}

func computeStats(total time.Duration, samples []time.Duration) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:   total,
		ops:     len(samples),
		p50:     percentile(samples, 50),
		p95:     percentile(samples, 95),
		p99:     percentile(samples, 99),
		opsPerS: float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
