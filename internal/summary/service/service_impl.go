package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/config"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	"github.com/briefly-app/briefly/internal/locks"
	"github.com/briefly-app/briefly/internal/summarizer/adapters"
	summarizerdomain "github.com/briefly-app/briefly/internal/summarizer/domain"
	"github.com/briefly-app/briefly/internal/summary/domain"
	transcriptdomain "github.com/briefly-app/briefly/internal/transcript/domain"
	usagedomain "github.com/briefly-app/briefly/internal/usage/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

const summaryCost = 1

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	GenID       *snowflake.Node
	Users       userdomain.Repository
	Videos      videodomain.Repository
	Metadata    videodomain.MetadataResolver
	Credits     creditsdomain.Service
	Transcripts transcriptdomain.Service
	Providers   *adapters.Registry
	Usage       usagedomain.Service
	Locker      *locks.Locker `optional:"true"`
}

type service struct {
	cfg         config.Config
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	users       userdomain.Repository
	videos      videodomain.Repository
	metadata    videodomain.MetadataResolver
	credits     creditsdomain.Service
	transcripts transcriptdomain.Service
	providers   *adapters.Registry
	usage       usagedomain.Service
	locker      *locks.Locker
}

func NewService(p Params) domain.Service {
	return &service{
		cfg:         p.Cfg,
		log:         p.Log.Named("summary.service"),
		clock:       p.Clock,
		genID:       p.GenID,
		users:       p.Users,
		videos:      p.Videos,
		metadata:    p.Metadata,
		credits:     p.Credits,
		transcripts: p.Transcripts,
		providers:   p.Providers,
		usage:       p.Usage,
		locker:      p.Locker,
	}
}

func (s *service) Summarize(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if !videodomain.ValidProvider(req.Provider) {
		return nil, videodomain.ErrInvalidProvider
	}
	if !videodomain.ValidLength(req.Length) {
		return nil, videodomain.ErrInvalidLength
	}

	videoID, err := videodomain.ParseVideoID(req.VideoRaw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, userdomain.ErrNotFound) {
			return nil, creditsdomain.ErrUserNotFound
		}
		return nil, err
	}

	// Lazy reset path. The scheduled sweep covers users who never come
	// back; both paths are no-ops once the period has been reset.
	if _, err := s.credits.ResetMonthly(ctx, user.ID); err != nil {
		s.log.Warn("lazy monthly reset failed", zap.Int64("user_id", int64(user.ID)), zap.Error(err))
	}

	video, err := s.resolveVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.videos.RecordAccess(ctx, video.ID, user.ID, now); err != nil {
		s.log.Warn("record access failed", zap.String("video_id", videoID), zap.Error(err))
	}

	existing, err := s.videos.FindSummary(ctx, video.ID, req.Provider, req.Length)
	if err == nil {
		return s.serveHit(ctx, user, video, existing, req)
	}
	if !errors.Is(err, videodomain.ErrSummaryNotFound) {
		return nil, err
	}

	return s.generate(ctx, user, video, req)
}

func (s *service) resolveVideo(ctx context.Context, videoID string) (*videodomain.Video, error) {
	video, err := s.videos.FindByVideoID(ctx, videoID)
	if err == nil {
		return video, nil
	}
	if !errors.Is(err, videodomain.ErrNotFound) {
		return nil, err
	}

	md, mdErr := s.metadata.Resolve(ctx, videoID)
	if mdErr != nil {
		s.log.Warn("metadata resolve failed", zap.String("video_id", videoID), zap.Error(mdErr))
		md = videodomain.Metadata{}
	}

	expiresAt := s.clock.Now().Add(s.cfg.CacheTTL)
	return s.videos.EnsureVideo(ctx, videoID, videodomain.CanonicalURL(videoID), md, expiresAt)
}

func (s *service) serveHit(ctx context.Context, user *userdomain.User, video *videodomain.Video, summary *videodomain.Summary, req domain.Request) (*domain.Result, error) {
	start := s.clock.Now()

	charged := 0
	var remaining int
	if user.IsPro() {
		balance, err := s.credits.Balance(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		remaining = balance
	} else {
		balance, err := s.credits.Deduct(ctx, user.ID, summaryCost, "summary served from cache", map[string]any{
			"video_id": video.VideoID,
			"provider": string(req.Provider),
			"length":   string(req.Length),
		})
		if err != nil {
			return nil, err
		}
		remaining = balance
		charged = summaryCost
	}

	if err := s.videos.MarkHit(ctx, video.ID, summary.ID); err != nil {
		s.log.Warn("mark hit failed", zap.String("video_id", video.VideoID), zap.Error(err))
	}
	s.logUsage(ctx, usagedomain.Entry{
		UserID:         user.ID,
		VideoRef:       video.ID,
		VideoID:        video.VideoID,
		Provider:       req.Provider,
		Length:         req.Length,
		CacheHit:       true,
		Success:        true,
		CreditsCharged: charged,
		Duration:       s.clock.Now().Sub(start),
	})

	return &domain.Result{
		Video:            video,
		Summary:          summary,
		Cached:           true,
		CreditsRemaining: remaining,
	}, nil
}

func (s *service) generate(ctx context.Context, user *userdomain.User, video *videodomain.Video, req domain.Request) (*domain.Result, error) {
	provider, err := s.providers.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	start := s.clock.Now()
	attemptID := uuid.NewString()

	// Deduct before generating, so a failing provider cannot be retried
	// for free. The refund on failure references the same attempt id.
	charged := 0
	var remaining int
	if user.IsPro() {
		balance, err := s.credits.Balance(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		remaining = balance
	} else {
		balance, err := s.credits.Deduct(ctx, user.ID, summaryCost, "summary generation", map[string]any{
			"attempt_id": attemptID,
			"video_id":   video.VideoID,
			"provider":   string(req.Provider),
			"length":     string(req.Length),
		})
		if err != nil {
			return nil, err
		}
		remaining = balance
		charged = summaryCost
	}

	lockKey := locks.GenerationKey(video.VideoID, string(req.Provider), string(req.Length))
	lockTTL := s.cfg.GenerationTimeout + 30*time.Second
	token, acquired, lockErr := s.locker.TryLock(ctx, lockKey, lockTTL)
	if lockErr != nil {
		s.log.Warn("generation lock unavailable", zap.String("key", lockKey), zap.Error(lockErr))
		acquired = true
	}
	if !acquired {
		return s.awaitWinner(ctx, user, video, req, attemptID, charged, start)
	}
	defer func() {
		if token != "" {
			if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
				s.log.Warn("generation lock release failed", zap.String("key", lockKey), zap.Error(err))
			}
		}
	}()

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	transcript, _, err := s.transcripts.GetOrFetch(genCtx, video)
	if err != nil {
		return nil, s.failGeneration(ctx, user, video, req, attemptID, charged, start, err)
	}

	result, err := provider.Summarize(genCtx, summarizerdomain.Request{
		Title:      video.Title,
		Transcript: transcript.Text,
		Length:     req.Length,
	})
	if err != nil {
		return nil, s.failGeneration(ctx, user, video, req, attemptID, charged, start, err)
	}

	summary, err := s.buildSummary(video, user.ID, req, result)
	if err != nil {
		return nil, s.failGeneration(ctx, user, video, req, attemptID, charged, start, err)
	}

	stored, created, err := s.videos.AppendSummary(ctx, summary)
	if err != nil {
		return nil, s.failGeneration(ctx, user, video, req, attemptID, charged, start, err)
	}

	if created {
		if err := s.videos.MarkMiss(ctx, video.ID); err != nil {
			s.log.Warn("mark miss failed", zap.String("video_id", video.VideoID), zap.Error(err))
		}
	} else {
		// Lost the append race; another writer's summary wins and this
		// request counts as a late hit.
		if err := s.videos.MarkHit(ctx, video.ID, stored.ID); err != nil {
			s.log.Warn("mark hit failed", zap.String("video_id", video.VideoID), zap.Error(err))
		}
	}

	s.logUsage(ctx, usagedomain.Entry{
		UserID:         user.ID,
		VideoRef:       video.ID,
		VideoID:        video.VideoID,
		Provider:       req.Provider,
		Length:         req.Length,
		CacheHit:       !created,
		Success:        true,
		CreditsCharged: charged,
		Duration:       s.clock.Now().Sub(start),
	})

	return &domain.Result{
		Video:            video,
		Summary:          stored,
		Cached:           !created,
		CreditsRemaining: remaining,
	}, nil
}

// awaitWinner handles losing the generation claim: poll until the holder
// releases, then serve their summary as a late hit. The caller was already
// charged for a miss, which nets out the same as a hit.
func (s *service) awaitWinner(ctx context.Context, user *userdomain.User, video *videodomain.Video, req domain.Request, attemptID string, charged int, start time.Time) (*domain.Result, error) {
	lockKey := locks.GenerationKey(video.VideoID, string(req.Provider), string(req.Length))

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	if err := s.locker.WaitForRelease(waitCtx, lockKey, time.Second); err != nil {
		return nil, s.failGeneration(ctx, user, video, req, attemptID, charged, start, domain.ErrGenerationInFlight)
	}

	summary, err := s.videos.FindSummary(ctx, video.ID, req.Provider, req.Length)
	if err != nil {
		// Winner failed or never appended; the caller sees the in-flight
		// error and keeps their credit.
		return nil, s.failGeneration(ctx, user, video, req, attemptID, charged, start, domain.ErrGenerationInFlight)
	}

	if err := s.videos.MarkHit(ctx, video.ID, summary.ID); err != nil {
		s.log.Warn("mark hit failed", zap.String("video_id", video.VideoID), zap.Error(err))
	}

	remaining, err := s.credits.Balance(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logUsage(ctx, usagedomain.Entry{
		UserID:         user.ID,
		VideoRef:       video.ID,
		VideoID:        video.VideoID,
		Provider:       req.Provider,
		Length:         req.Length,
		CacheHit:       true,
		Success:        true,
		CreditsCharged: charged,
		Duration:       s.clock.Now().Sub(start),
	})

	return &domain.Result{
		Video:            video,
		Summary:          summary,
		Cached:           true,
		CreditsRemaining: remaining,
	}, nil
}

// failGeneration refunds the deduction for this attempt (at most once, the
// attempt id in the ledger metadata correlates the pair) and records the
// failed usage row before surfacing the error.
func (s *service) failGeneration(ctx context.Context, user *userdomain.User, video *videodomain.Video, req domain.Request, attemptID string, charged int, start time.Time, cause error) error {
	if charged > 0 {
		if _, err := s.credits.Add(ctx, user.ID, charged, creditsdomain.KindRefund, "summary generation failed", map[string]any{
			"attempt_id": attemptID,
			"video_id":   video.VideoID,
			"provider":   string(req.Provider),
			"length":     string(req.Length),
		}); err != nil {
			s.log.Error("generation refund failed",
				zap.Int64("user_id", int64(user.ID)),
				zap.String("attempt_id", attemptID),
				zap.Error(err),
			)
		}
	}

	s.logUsage(ctx, usagedomain.Entry{
		UserID:   user.ID,
		VideoRef: video.ID,
		VideoID:  video.VideoID,
		Provider: req.Provider,
		Length:   req.Length,
		CacheHit: false,
		Success:  false,
		Error:    cause.Error(),
		Duration: s.clock.Now().Sub(start),
	})

	return fmt.Errorf("summary generation for %s: %w", video.VideoID, cause)
}

func (s *service) buildSummary(video *videodomain.Video, userID snowflake.ID, req domain.Request, result *summarizerdomain.Result) (*videodomain.Summary, error) {
	keyPoints, err := json.Marshal(result.KeyPoints)
	if err != nil {
		return nil, err
	}
	chapters, err := json.Marshal(result.Chapters)
	if err != nil {
		return nil, err
	}
	tags, err := json.Marshal(result.Tags)
	if err != nil {
		return nil, err
	}

	return &videodomain.Summary{
		ID:           s.genID.Generate(),
		VideoRef:     video.ID,
		Provider:     req.Provider,
		Length:       req.Length,
		Text:         result.Summary,
		KeyPoints:    datatypes.JSON(keyPoints),
		Chapters:     datatypes.JSON(chapters),
		Tags:         datatypes.JSON(tags),
		Model:        result.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostMicros:   result.CostMicros,
		GeneratedBy:  userID,
		CreatedAt:    s.clock.Now(),
	}, nil
}

func (s *service) Transcript(ctx context.Context, videoRaw string) (*videodomain.Transcript, error) {
	videoID, err := videodomain.ParseVideoID(videoRaw)
	if err != nil {
		return nil, err
	}

	video, err := s.resolveVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	transcript, _, err := s.transcripts.GetOrFetch(ctx, video)
	if err != nil {
		return nil, err
	}
	return transcript, nil
}

func (s *service) logUsage(ctx context.Context, entry usagedomain.Entry) {
	if err := s.usage.Log(ctx, entry); err != nil {
		s.log.Warn("usage log failed",
			zap.Int64("user_id", int64(entry.UserID)),
			zap.String("video_id", entry.VideoID),
			zap.Error(err),
		)
	}
}
