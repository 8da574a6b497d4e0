// Package domain defines per-request usage logging and usage counters.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

// UsageLog is one row per summary request, successful or not.
type UsageLog struct {
	ID             snowflake.ID              `gorm:"primaryKey"`
	UserID         snowflake.ID              `gorm:"not null;index:ix_usage_logs_user_created,priority:1"`
	VideoRef       snowflake.ID              `gorm:"not null;index"`
	VideoID        string                    `gorm:"type:text;not null"`
	Provider       videodomain.Provider      `gorm:"type:text;not null"`
	Length         videodomain.SummaryLength `gorm:"type:text;not null"`
	CacheHit       bool                      `gorm:"not null"`
	Success        bool                      `gorm:"not null"`
	Error          string                    `gorm:"type:text"`
	CreditsCharged int                       `gorm:"not null;default:0"`
	DurationMS     int64                     `gorm:"not null;default:0"`
	CreatedAt      time.Time                 `gorm:"not null;index:ix_usage_logs_user_created,priority:2"`
}

// TableName sets the database table name.
func (UsageLog) TableName() string { return "usage_logs" }

type Entry struct {
	UserID         snowflake.ID
	VideoRef       snowflake.ID
	VideoID        string
	Provider       videodomain.Provider
	Length         videodomain.SummaryLength
	CacheHit       bool
	Success        bool
	Error          string
	CreditsCharged int
	Duration       time.Duration
}

type Service interface {
	// Log appends a usage row. On success it also bumps the user's
	// daily/monthly/total counters and time-saved aggregate.
	Log(ctx context.Context, entry Entry) error

	ListForUser(ctx context.Context, userID snowflake.ID, limit int) ([]UsageLog, error)

	// ResetDaily zeroes summaries_today for all users. Run at the daily
	// reset boundary.
	ResetDaily(ctx context.Context) (int64, error)

	// PruneOlderThan removes usage rows older than cutoff.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	TotalSummaries(ctx context.Context) (int64, error)
}
