package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/kpi-service/internal/config"
	"github.com/spec-kit/kpi-service/internal/persistence"
	"github.com/spec-kit/kpi-service/internal/service"
)

const leaseTTL = 10 * time.Minute

// Scheduler drives the periodic notification sweeps: the at-risk and
// due-soon reminders at the top of every hour and the admin summary once a
// day. There is no last-run persistence; after a restart the process simply
// waits for the next boundary and missed ticks are not replayed.
type Scheduler struct {
	notifications *service.NotificationService
	redis         *persistence.Redis
	logger        *zap.Logger
	cfg           config.SchedulerConfig

	// Now is overridable for boundary tests.
	Now func() time.Time
}

// New constructs the scheduler.
func New(cfg config.SchedulerConfig, notifications *service.NotificationService, redis *persistence.Redis, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		notifications: notifications,
		redis:         redis,
		logger:        logger,
		cfg:           cfg,
		Now:           time.Now,
	}
}

// Run blocks until ctx is cancelled, firing sweeps at their boundaries.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled")
		return
	}

	now := s.Now()
	hourly := time.NewTimer(nextHourBoundary(now).Sub(now))
	daily := time.NewTimer(nextDailyBoundary(now, s.cfg.DailySummaryHour).Sub(now))
	defer hourly.Stop()
	defer daily.Stop()

	s.logger.Info("scheduler started",
		zap.Time("next_hourly", nextHourBoundary(now)),
		zap.Time("next_daily", nextDailyBoundary(now, s.cfg.DailySummaryHour)))

	for {
		select {
		case <-ctx.Done():
			return
		case <-hourly.C:
			boundary := nextHourBoundary(s.Now().Add(-time.Minute))
			s.runSweeps(ctx, boundary)
			now = s.Now()
			hourly.Reset(nextHourBoundary(now).Sub(now))
		case <-daily.C:
			boundary := nextDailyBoundary(s.Now().Add(-time.Minute), s.cfg.DailySummaryHour)
			s.runDailySummary(ctx, boundary)
			now = s.Now()
			daily.Reset(nextDailyBoundary(now, s.cfg.DailySummaryHour).Sub(now))
		}
	}
}

func (s *Scheduler) runSweeps(ctx context.Context, boundary time.Time) {
	if !s.acquire(ctx, "hourly", boundary) {
		return
	}
	if created, err := s.notifications.SweepAtRisk(ctx); err != nil {
		s.logger.Error("at-risk sweep failed", zap.Error(err))
	} else {
		s.logger.Info("at-risk sweep done", zap.Int("created", created))
	}
	if created, err := s.notifications.SweepDueSoon(ctx); err != nil {
		s.logger.Error("due-soon sweep failed", zap.Error(err))
	} else {
		s.logger.Info("due-soon sweep done", zap.Int("created", created))
	}
}

func (s *Scheduler) runDailySummary(ctx context.Context, boundary time.Time) {
	if !s.acquire(ctx, "daily", boundary) {
		return
	}
	if created, err := s.notifications.DailySummary(ctx); err != nil {
		s.logger.Error("daily summary failed", zap.Error(err))
	} else {
		s.logger.Info("daily summary done", zap.Int("created", created))
	}
}

// acquire takes a best-effort redis lease for the sweep boundary so two
// processes started around the same tick do not both fire. When redis is
// unreachable the sweep runs anyway; a duplicate reminder is acceptable.
func (s *Scheduler) acquire(ctx context.Context, name string, boundary time.Time) bool {
	if s.redis == nil {
		return true
	}
	key := fmt.Sprintf("kpi:sweep:%s:%d", name, boundary.Unix())
	ok, err := s.redis.AcquireLease(ctx, key, leaseTTL)
	if err != nil {
		s.logger.Warn("sweep lease unavailable, running anyway", zap.String("sweep", name), zap.Error(err))
		return true
	}
	if !ok {
		s.logger.Info("sweep already claimed", zap.String("sweep", name), zap.Time("boundary", boundary))
	}
	return ok
}

// nextHourBoundary returns the next top of the hour strictly after now.
func nextHourBoundary(now time.Time) time.Time {
	return now.Truncate(time.Hour).Add(time.Hour)
}

// nextDailyBoundary returns the next occurrence of hour:00 local strictly
// after now.
func nextDailyBoundary(now time.Time, hour int) time.Time {
	year, month, day := now.Date()
	next := time.Date(year, month, day, hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
