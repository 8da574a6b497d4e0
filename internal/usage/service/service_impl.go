package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/briefly-app/briefly/internal/clock"
	usagedomain "github.com/briefly-app/briefly/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// rough minutes of watching replaced by reading one summary; feeds the
// dashboard's time-saved aggregate
const minutesSavedPerSummary = 15

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) usagedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("usage.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Log(ctx context.Context, entry usagedomain.Entry) error {
	now := s.clock.Now()
	row := usagedomain.UsageLog{
		ID:             s.genID.Generate(),
		UserID:         entry.UserID,
		VideoRef:       entry.VideoRef,
		VideoID:        entry.VideoID,
		Provider:       entry.Provider,
		Length:         entry.Length,
		CacheHit:       entry.CacheHit,
		Success:        entry.Success,
		Error:          entry.Error,
		CreditsCharged: entry.CreditsCharged,
		DurationMS:     entry.Duration.Milliseconds(),
		CreatedAt:      now,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if !entry.Success {
			return nil
		}
		return tx.Exec(
			`UPDATE users
			 SET summaries_today = summaries_today + 1,
			     summaries_month = summaries_month + 1,
			     summaries_total = summaries_total + 1,
			     minutes_saved = minutes_saved + ?,
			     updated_at = ?
			 WHERE id = ?`,
			minutesSavedPerSummary, now, entry.UserID,
		).Error
	})
}

func (s *Service) ListForUser(ctx context.Context, userID snowflake.ID, limit int) ([]usagedomain.UsageLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []usagedomain.UsageLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) ResetDaily(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE users SET summaries_today = 0 WHERE summaries_today <> 0`,
	)
	return result.RowsAffected, result.Error
}

func (s *Service) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&usagedomain.UsageLog{})
	return result.RowsAffected, result.Error
}

func (s *Service) TotalSummaries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&usagedomain.UsageLog{}).
		Where("success = ?", true).
		Count(&count).Error
	return count, err
}
