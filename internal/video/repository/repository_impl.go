package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/briefly-app/briefly/internal/video/domain"
	"github.com/briefly-app/briefly/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type repo struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func Provide(p Params) domain.Repository {
	return &repo{
		db:    p.DB,
		log:   p.Log.Named("video.repository"),
		genID: p.GenID,
	}
}

func (r *repo) EnsureVideo(ctx context.Context, videoID, videoURL string, md domain.Metadata, expiresAt time.Time) (*domain.Video, error) {
	existing, err := r.FindByVideoID(ctx, videoID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	video := &domain.Video{
		ID:             r.genID.Generate(),
		VideoID:        videoID,
		VideoURL:       videoURL,
		Title:          md.Title,
		ChannelID:      md.ChannelID,
		CacheExpiresAt: expiresAt,
	}
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			// lost the race; the other writer's row wins
			return r.FindByVideoID(ctx, videoID)
		}
		return nil, err
	}
	return video, nil
}

func (r *repo) FindByVideoID(ctx context.Context, videoID string) (*domain.Video, error) {
	var video domain.Video
	err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *repo) RecordAccess(ctx context.Context, videoRef, userID snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE video_accesses
			 SET access_count = access_count + 1, last_access_at = ?
			 WHERE video_ref = ? AND user_id = ?`,
			at, videoRef, userID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			access := &domain.VideoAccess{
				ID:           r.genID.Generate(),
				VideoRef:     videoRef,
				UserID:       userID,
				AccessCount:  1,
				LastAccessAt: at,
			}
			if err := tx.Create(access).Error; err != nil && !db.IsDuplicateKeyErr(err) {
				return err
			}
		}
		return tx.Exec(
			`UPDATE videos SET view_count = view_count + 1, updated_at = ? WHERE id = ?`,
			at, videoRef,
		).Error
	})
}

func (r *repo) FindSummary(ctx context.Context, videoRef snowflake.ID, provider domain.Provider, length domain.SummaryLength) (*domain.Summary, error) {
	var summary domain.Summary
	err := r.db.WithContext(ctx).
		Where("video_ref = ? AND provider = ? AND length = ?", videoRef, provider, length).
		First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSummaryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *repo) AppendSummary(ctx context.Context, s *domain.Summary) (*domain.Summary, bool, error) {
	if s.ID == 0 {
		s.ID = r.genID.Generate()
	}
	err := r.db.WithContext(ctx).Create(s).Error
	if err == nil {
		return s, true, nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return nil, false, err
	}
	// another request appended the same (provider, length) first
	existing, findErr := r.FindSummary(ctx, s.VideoRef, s.Provider, s.Length)
	if findErr != nil {
		return nil, false, findErr
	}
	return existing, false, nil
}

func (r *repo) MarkHit(ctx context.Context, videoRef snowflake.ID, summaryID snowflake.ID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`UPDATE videos SET cache_hits = cache_hits + 1 WHERE id = ?`, videoRef,
		).Error; err != nil {
			return err
		}
		return tx.Exec(
			`UPDATE summaries SET served_count = served_count + 1 WHERE id = ?`, summaryID,
		).Error
	})
}

func (r *repo) MarkMiss(ctx context.Context, videoRef snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE videos SET cache_misses = cache_misses + 1 WHERE id = ?`, videoRef,
	).Error
}

func (r *repo) FindTranscript(ctx context.Context, videoRef snowflake.ID) (*domain.Transcript, error) {
	var transcript domain.Transcript
	err := r.db.WithContext(ctx).
		Where("video_ref = ?", videoRef).
		First(&transcript).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTranscriptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &transcript, nil
}

func (r *repo) SaveTranscript(ctx context.Context, t *domain.Transcript) error {
	if t.ID == 0 {
		t.ID = r.genID.Generate()
	}
	err := r.db.WithContext(ctx).Create(t).Error
	if err == nil {
		return nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return err
	}
	return r.db.WithContext(ctx).Exec(
		`UPDATE transcripts
		 SET text = ?, segments = ?, language = ?, source = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE video_ref = ?`,
		t.Text, t.Segments, t.Language, t.Source, t.VideoRef,
	).Error
}

func (r *repo) PurgeExpired(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	var purged int64
	for {
		var ids []snowflake.ID
		err := r.db.WithContext(ctx).
			Model(&domain.Video{}).
			Where("cache_expires_at <= ?", now).
			Limit(batchSize).
			Pluck("id", &ids).Error
		if err != nil {
			return purged, err
		}
		if len(ids) == 0 {
			return purged, nil
		}

		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(`DELETE FROM summaries WHERE video_ref IN ?`, ids).Error; err != nil {
				return err
			}
			if err := tx.Exec(`DELETE FROM transcripts WHERE video_ref IN ?`, ids).Error; err != nil {
				return err
			}
			if err := tx.Exec(`DELETE FROM video_accesses WHERE video_ref IN ?`, ids).Error; err != nil {
				return err
			}
			return tx.Exec(`DELETE FROM videos WHERE id IN ?`, ids).Error
		})
		if err != nil {
			return purged, err
		}
		purged += int64(len(ids))
	}
}

func (r *repo) CountVideos(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Video{}).Count(&count).Error
	return count, err
}

func (r *repo) CacheTotals(ctx context.Context) (int64, int64, error) {
	var totals struct {
		Hits   int64
		Misses int64
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(cache_hits), 0) AS hits, COALESCE(SUM(cache_misses), 0) AS misses FROM videos`,
	).Scan(&totals).Error
	if err != nil {
		return 0, 0, err
	}
	return totals.Hits, totals.Misses, nil
}
