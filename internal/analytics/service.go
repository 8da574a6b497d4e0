// Package analytics computes the periodic usage report. The report is
// logged, never persisted.
package analytics

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/briefly-app/briefly/internal/clock"
	usagedomain "github.com/briefly-app/briefly/internal/usage/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

const reportWindow = 7 * 24 * time.Hour

type Report struct {
	WindowStart    time.Time
	WindowEnd      time.Time
	ActiveUsers    int64
	Signups        int64
	FreeUsers      int64
	ProUsers       int64
	TotalSummaries int64
	CachedVideos   int64
	CacheHitRate   float64
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Users  userdomain.Repository
	Videos videodomain.Repository
	Usage  usagedomain.Service
}

type Service struct {
	log    *zap.Logger
	clock  clock.Clock
	users  userdomain.Repository
	videos videodomain.Repository
	usage  usagedomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		log:    p.Log.Named("analytics.service"),
		clock:  p.Clock,
		users:  p.Users,
		videos: p.Videos,
		usage:  p.Usage,
	}
}

func (s *Service) WeeklyReport(ctx context.Context) (*Report, error) {
	end := s.clock.Now()
	start := end.Add(-reportWindow)

	active, err := s.users.ActiveSince(ctx, start)
	if err != nil {
		return nil, err
	}
	signups, err := s.users.SignupsSince(ctx, start)
	if err != nil {
		return nil, err
	}
	plans, err := s.users.CountByPlan(ctx)
	if err != nil {
		return nil, err
	}
	totalSummaries, err := s.usage.TotalSummaries(ctx)
	if err != nil {
		return nil, err
	}
	videos, err := s.videos.CountVideos(ctx)
	if err != nil {
		return nil, err
	}
	hits, misses, err := s.videos.CacheTotals(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		WindowStart:    start,
		WindowEnd:      end,
		ActiveUsers:    active,
		Signups:        signups,
		FreeUsers:      plans[userdomain.PlanFree],
		ProUsers:       plans[userdomain.PlanPro],
		TotalSummaries: totalSummaries,
		CachedVideos:   videos,
	}
	if total := hits + misses; total > 0 {
		report.CacheHitRate = float64(hits) / float64(total)
	}

	s.log.Info("weekly report",
		zap.Time("window_start", report.WindowStart),
		zap.Time("window_end", report.WindowEnd),
		zap.Int64("active_users", report.ActiveUsers),
		zap.Int64("signups", report.Signups),
		zap.Int64("free_users", report.FreeUsers),
		zap.Int64("pro_users", report.ProUsers),
		zap.Int64("total_summaries", report.TotalSummaries),
		zap.Int64("cached_videos", report.CachedVideos),
		zap.Float64("cache_hit_rate", report.CacheHitRate),
	)
	return report, nil
}

var Module = fx.Module("analytics",
	fx.Provide(NewService),
)
