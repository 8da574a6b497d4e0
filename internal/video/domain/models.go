// Package domain contains persistence models for cached videos, transcripts
// and generated summaries.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Provider identifies the AI backend that produced a summary.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// SummaryLength is the requested summary size.
type SummaryLength string

const (
	LengthShort  SummaryLength = "short"
	LengthMedium SummaryLength = "medium"
	LengthLong   SummaryLength = "long"
)

// TranscriptSource records where a transcript came from.
type TranscriptSource string

const (
	TranscriptSourceAuto      TranscriptSource = "youtube_auto"
	TranscriptSourceManual    TranscriptSource = "youtube_manual"
	TranscriptSourceGenerated TranscriptSource = "youtube_generated"
)

func ValidProvider(p Provider) bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		return true
	}
	return false
}

func ValidLength(l SummaryLength) bool {
	switch l {
	case LengthShort, LengthMedium, LengthLong:
		return true
	}
	return false
}

// Video is one row per distinct YouTube video id.
type Video struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	VideoID        string       `gorm:"type:text;not null;uniqueIndex:ux_videos_video_id"`
	VideoURL       string       `gorm:"type:text;not null"`
	Title          string       `gorm:"type:text"`
	ChannelID      string       `gorm:"type:text;index"`
	ViewCount      int64        `gorm:"not null;default:0"`
	CacheHits      int64        `gorm:"not null;default:0"`
	CacheMisses    int64        `gorm:"not null;default:0"`
	CacheExpiresAt time.Time    `gorm:"not null;index"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Video) TableName() string { return "videos" }

// HitRate is derived, never stored.
func (v Video) HitRate() float64 {
	total := v.CacheHits + v.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(v.CacheHits) / float64(total)
}

// Transcript holds the single transcript per video. Re-fetching overwrites.
type Transcript struct {
	ID        snowflake.ID     `gorm:"primaryKey"`
	VideoRef  snowflake.ID     `gorm:"not null;uniqueIndex:ux_transcripts_video"`
	Text      string           `gorm:"type:text;not null"`
	Segments  datatypes.JSON   `gorm:"type:jsonb"`
	Language  string           `gorm:"type:text"`
	Source    TranscriptSource `gorm:"type:text;not null"`
	CreatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transcript) TableName() string { return "transcripts" }

// TranscriptSegment is the shape stored in Transcript.Segments.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Summary is one generated summary per (video, provider, length). The unique
// index is what enforces the at-most-one invariant.
type Summary struct {
	ID          snowflake.ID   `gorm:"primaryKey"`
	VideoRef    snowflake.ID   `gorm:"not null;index;uniqueIndex:ux_summaries_video_provider_length,priority:1"`
	Provider    Provider       `gorm:"type:text;not null;uniqueIndex:ux_summaries_video_provider_length,priority:2"`
	Length      SummaryLength  `gorm:"type:text;not null;uniqueIndex:ux_summaries_video_provider_length,priority:3"`
	Text        string         `gorm:"type:text;not null"`
	KeyPoints   datatypes.JSON `gorm:"type:jsonb"`
	Chapters    datatypes.JSON `gorm:"type:jsonb"`
	Tags        datatypes.JSON `gorm:"type:jsonb"`
	Model       string         `gorm:"type:text"`
	InputTokens int            `gorm:"not null;default:0"`
	OutputTokens int           `gorm:"not null;default:0"`
	CostMicros  int64          `gorm:"not null;default:0"`
	GeneratedBy snowflake.ID   `gorm:"not null;index"`
	ServedCount int64          `gorm:"not null;default:0"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Summary) TableName() string { return "summaries" }

// VideoAccess tracks per-user access counters on a video.
type VideoAccess struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	VideoRef     snowflake.ID `gorm:"not null;uniqueIndex:ux_video_accesses_video_user,priority:1"`
	UserID       snowflake.ID `gorm:"not null;uniqueIndex:ux_video_accesses_video_user,priority:2"`
	AccessCount  int64        `gorm:"not null;default:0"`
	LastAccessAt time.Time    `gorm:"not null"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (VideoAccess) TableName() string { return "video_accesses" }

// Metadata is what the metadata resolver returns for a fresh video id.
type Metadata struct {
	Title     string
	ChannelID string
}
