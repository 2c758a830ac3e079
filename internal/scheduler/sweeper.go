// Package scheduler runs periodic maintenance jobs.
//
// The only job today is the expiry sweep: listings that stayed "available"
// past their TTL already read as expired, and the sweep makes that durable
// so the stored status matches what readers see.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakif/foodbridge/internal/metrics"
)

const (
	DefaultSchedule = "@every 5m"
	runTimeout      = 30 * time.Second
)

// Expirer persists expiry for stale listings. *service.FoodService satisfies it.
type Expirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// Sweeper runs Expirer on a cron schedule.
type Sweeper struct {
	cron     *cron.Cron
	expirer  Expirer
	logger   *slog.Logger
	schedule string
}

// Disabled reports whether schedule turns the sweep off.
func Disabled(schedule string) bool {
	s := strings.TrimSpace(strings.ToLower(schedule))
	return s == "" || s == "off"
}

// NewSweeper validates schedule (standard 5-field cron or a descriptor such
// as "@every 5m") and registers the sweep. Overlapping runs are skipped.
func NewSweeper(schedule string, expirer Expirer, logger *slog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		expirer:  expirer,
		logger:   logger,
		schedule: schedule,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("scheduler: invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start performs one sweep immediately and then follows the schedule.
func (s *Sweeper) Start() {
	s.logger.Info("starting expiry sweeper", slog.String("schedule", s.schedule))
	s.RunOnce(context.Background())
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep, up to ctx's deadline.
func (s *Sweeper) Stop(ctx context.Context) {
	s.logger.Info("shutting down expiry sweeper")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("expiry sweeper did not stop in time")
	}
}

// RunOnce executes a single sweep and returns how many listings expired.
func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.expirer.ExpireStale(ctx)
	elapsed := time.Since(start)
	metrics.RecordSweep(elapsed, err == nil)

	if err != nil {
		s.logger.Error("expiry sweep failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", elapsed),
		)
		return 0
	}
	if n > 0 {
		s.logger.Info("expired stale listings",
			slog.Int64("count", n),
			slog.Duration("duration", elapsed),
		)
	}
	return n
}
