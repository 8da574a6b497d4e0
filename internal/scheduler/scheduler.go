// Package scheduler runs the periodic maintenance jobs: usage counter
// resets, monthly credit sweeps, subscription downgrades, cache purges,
// notifications and history pruning. Jobs are individually fault-isolated;
// one failing job never blocks the rest of the batch.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/briefly-app/briefly/internal/analytics"
	"github.com/briefly-app/briefly/internal/clock"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	"github.com/briefly-app/briefly/internal/notification"
	obsmetrics "github.com/briefly-app/briefly/internal/observability/metrics"
	subscriptiondomain "github.com/briefly-app/briefly/internal/subscription/domain"
	usagedomain "github.com/briefly-app/briefly/internal/usage/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

var ErrUnknownJob = errors.New("scheduler: unknown job")

type Params struct {
	fx.In

	Log             *zap.Logger
	Clock           clock.Clock
	Users           userdomain.Repository
	Videos          videodomain.Repository
	CreditsSvc      creditsdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	UsageSvc        usagedomain.Service
	NotificationSvc *notification.Service
	AnalyticsSvc    *analytics.Service
	Config          Config `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	clock           clock.Clock
	users           userdomain.Repository
	videos          videodomain.Repository
	creditsSvc      creditsdomain.Service
	subscriptionSvc subscriptiondomain.Service
	usageSvc        usagedomain.Service
	notificationSvc *notification.Service
	analyticsSvc    *analytics.Service

	mu      sync.Mutex
	nextDue map[string]time.Time
}

type jobSpec struct {
	Name    string
	Every   time.Duration
	Timeout time.Duration
	Run     func(context.Context) error
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Users == nil || p.Videos == nil ||
		p.CreditsSvc == nil || p.SubscriptionSvc == nil || p.UsageSvc == nil ||
		p.NotificationSvc == nil || p.AnalyticsSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		clock:           p.Clock,
		users:           p.Users,
		videos:          p.Videos,
		creditsSvc:      p.CreditsSvc,
		subscriptionSvc: p.SubscriptionSvc,
		usageSvc:        p.UsageSvc,
		notificationSvc: p.NotificationSvc,
		analyticsSvc:    p.AnalyticsSvc,
		nextDue:         map[string]time.Time{},
	}, nil
}

func (s *Scheduler) jobs() []jobSpec {
	const day = 24 * time.Hour
	return []jobSpec{
		{"daily_usage_reset", day, 30 * time.Second, s.DailyUsageResetJob},
		{"monthly_credit_reset", time.Hour, 30 * time.Second, s.MonthlyCreditResetJob},
		{"downgrade_subscriptions", day, 30 * time.Second, s.DowngradeSubscriptionsJob},
		{"low_credit_notify", day, time.Minute, s.LowCreditNotifyJob},
		{"purge_video_cache", 7 * day, 5 * time.Minute, s.PurgeVideoCacheJob},
		{"analytics_report", 7 * day, time.Minute, s.AnalyticsReportJob},
		{"prune_history", 30 * day, 5 * time.Minute, s.PruneHistoryJob},
	}
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	// deadline is a soft failure; the next tick picks the work back up
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	log.Warn("job failed", zap.Error(err))
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job that is due, accumulating errors so a
// failing job never prevents the rest from running.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	now := s.clock.Now()

	for _, job := range s.jobs() {
		if !s.isJobEnabled(job.Name) || !s.claimDue(job.Name, now, job.Every) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Timeout, job.Run))
	}
	return err
}

// RunJob forces a single job by name regardless of cadence. Used by the dev
// trigger route and by tests.
func (s *Scheduler) RunJob(parent context.Context, name string) error {
	for _, job := range s.jobs() {
		if strings.EqualFold(job.Name, name) {
			return s.runJob(parent, job.Name, job.Timeout, job.Run)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

// JobNames lists the schedulable jobs.
func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs()))
	for _, job := range s.jobs() {
		names = append(names, job.Name)
	}
	return names
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// claimDue advances the job's next-due time when the job is due now. The
// first call for a job always claims, so everything runs on startup.
func (s *Scheduler) claimDue(name string, now time.Time, every time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	due, seen := s.nextDue[name]
	if seen && now.Before(due) {
		return false
	}
	s.nextDue[name] = now.Add(every)
	return true
}

func (s *Scheduler) DailyUsageResetJob(ctx context.Context) error {
	reset, err := s.usageSvc.ResetDaily(ctx)
	if err != nil {
		return err
	}
	obsmetrics.Scheduler().AddBatchProcessed("daily_usage_reset", reset)
	s.log.Info("daily usage counters reset", zap.Int64("users", reset))
	return nil
}

// MonthlyCreditResetJob sweeps free users whose reset date has passed. The
// per-request lazy reset covers active users; this covers everyone else.
func (s *Scheduler) MonthlyCreditResetJob(ctx context.Context) error {
	now := s.clock.Now()
	var errs error
	total := 0

	for {
		ids, err := s.users.DueMonthlyReset(ctx, now, s.cfg.BatchSize)
		if err != nil {
			return errors.Join(errs, err)
		}
		if len(ids) == 0 {
			break
		}

		progress := 0
		for _, id := range ids {
			reset, err := s.creditsSvc.ResetMonthly(ctx, id)
			if err != nil {
				errs = errors.Join(errs, err)
				continue
			}
			if reset {
				progress++
			}
		}
		total += progress
		// every row in the batch failed or was already reset; stop rather
		// than spinning on the same ids
		if progress == 0 {
			break
		}
	}

	obsmetrics.Scheduler().AddBatchProcessed("monthly_credit_reset", int64(total))
	if total > 0 {
		s.log.Info("monthly credits reset", zap.Int("users", total))
	}
	return errs
}

func (s *Scheduler) DowngradeSubscriptionsJob(ctx context.Context) error {
	downgraded, err := s.subscriptionSvc.DowngradeDue(ctx, s.clock.Now(), s.cfg.BatchSize)
	if downgraded > 0 {
		obsmetrics.Scheduler().AddBatchProcessed("downgrade_subscriptions", int64(downgraded))
		s.log.Info("subscriptions downgraded", zap.Int("users", downgraded))
	}
	return err
}

func (s *Scheduler) LowCreditNotifyJob(ctx context.Context) error {
	sent, err := s.notificationSvc.NotifyLowCredits(ctx)
	if err != nil {
		return err
	}
	obsmetrics.Scheduler().AddBatchProcessed("low_credit_notify", int64(sent))
	if sent > 0 {
		s.log.Info("low credit notifications sent", zap.Int("count", sent))
	}
	return nil
}

func (s *Scheduler) PurgeVideoCacheJob(ctx context.Context) error {
	purged, err := s.videos.PurgeExpired(ctx, s.clock.Now(), s.cfg.BatchSize)
	if purged > 0 {
		obsmetrics.Scheduler().AddBatchProcessed("purge_video_cache", purged)
		s.log.Info("expired videos purged", zap.Int64("videos", purged))
	}
	return err
}

func (s *Scheduler) AnalyticsReportJob(ctx context.Context) error {
	_, err := s.analyticsSvc.WeeklyReport(ctx)
	return err
}

func (s *Scheduler) PruneHistoryJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.HistoryRetained)

	usageRows, usageErr := s.usageSvc.PruneOlderThan(ctx, cutoff)
	ledgerRows, ledgerErr := s.creditsSvc.PruneOlderThan(ctx, cutoff)

	pruned := usageRows + ledgerRows
	if pruned > 0 {
		obsmetrics.Scheduler().AddBatchProcessed("prune_history", pruned)
		s.log.Info("history pruned",
			zap.Int64("usage_rows", usageRows),
			zap.Int64("ledger_rows", ledgerRows),
			zap.Time("cutoff", cutoff),
		)
	}
	return errors.Join(usageErr, ledgerErr)
}
