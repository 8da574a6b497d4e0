package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// MetadataResolver looks up title/channel for a video id on first sight.
type MetadataResolver interface {
	Resolve(ctx context.Context, videoID string) (Metadata, error)
}

// Repository is the persistence surface for the video cache store.
type Repository interface {
	// EnsureVideo resolves or creates the row for videoID. Creation is an
	// idempotent upsert keyed by video_id; concurrent callers converge on
	// the same row.
	EnsureVideo(ctx context.Context, videoID, videoURL string, md Metadata, expiresAt time.Time) (*Video, error)

	FindByVideoID(ctx context.Context, videoID string) (*Video, error)

	// RecordAccess increments the per-user access counter and the video view
	// counter.
	RecordAccess(ctx context.Context, videoRef, userID snowflake.ID, at time.Time) error

	// FindSummary matches (provider, length) exactly.
	FindSummary(ctx context.Context, videoRef snowflake.ID, provider Provider, length SummaryLength) (*Summary, error)

	// AppendSummary inserts a summary. If another writer got there first the
	// existing row is returned with created=false.
	AppendSummary(ctx context.Context, s *Summary) (*Summary, bool, error)

	MarkHit(ctx context.Context, videoRef snowflake.ID, summaryID snowflake.ID) error
	MarkMiss(ctx context.Context, videoRef snowflake.ID) error

	FindTranscript(ctx context.Context, videoRef snowflake.ID) (*Transcript, error)
	// SaveTranscript overwrites any previous transcript for the video.
	SaveTranscript(ctx context.Context, t *Transcript) error

	// PurgeExpired deletes videos whose cache_expires_at has passed, along
	// with their summaries, transcripts and access rows. Returns rows purged.
	PurgeExpired(ctx context.Context, now time.Time, batchSize int) (int64, error)

	CountVideos(ctx context.Context) (int64, error)
	CacheTotals(ctx context.Context) (hits int64, misses int64, err error)
}
