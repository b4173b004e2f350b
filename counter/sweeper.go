package counter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs a sweep once a minute.
const DefaultSweepSchedule = "@every 1m"

// Sweeper periodically purges expired records from a [Sweepable] backend.
// Redis expires keys on its own and needs no sweeper.
type Sweeper struct {
	target   Sweepable
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewSweeper validates schedule and returns a stopped sweeper. An empty
// schedule uses [DefaultSweepSchedule].
func NewSweeper(target Sweepable, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sweeper{
		target:   target,
		schedule: schedule,
		timeout:  30 * time.Second,
		logger:   logger,
		cron:     cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("counter sweeper started", slog.String("schedule", s.schedule))
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce performs one sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	removed, err := s.target.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	removed, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Warn("counter sweep failed", slog.Any("error", err))
		return
	}
	if removed > 0 {
		s.logger.Debug("counter sweep completed",
			slog.Int("removed", removed),
			slog.Duration("duration", time.Since(start)))
	}
}
