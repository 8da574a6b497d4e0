package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/transcript/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Fetcher domain.Fetcher
	Videos  videodomain.Repository
	GenID   *snowflake.Node
}

type service struct {
	log     *zap.Logger
	clock   clock.Clock
	fetcher domain.Fetcher
	videos  videodomain.Repository
	genID   *snowflake.Node
}

func NewService(p Params) domain.Service {
	return &service{
		log:     p.Log.Named("transcript.service"),
		clock:   p.Clock,
		fetcher: p.Fetcher,
		videos:  p.Videos,
		genID:   p.GenID,
	}
}

func (s *service) GetOrFetch(ctx context.Context, video *videodomain.Video) (*videodomain.Transcript, bool, error) {
	stored, err := s.videos.FindTranscript(ctx, video.ID)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, videodomain.ErrTranscriptNotFound) {
		return nil, false, err
	}

	fetched, err := s.fetcher.Fetch(ctx, video.VideoID)
	if err != nil {
		if errors.Is(err, domain.ErrNoTranscript) {
			return nil, false, err
		}
		s.log.Warn("transcript fetch failed",
			zap.String("video_id", video.VideoID),
			zap.Error(err),
		)
		return nil, false, err
	}

	segments, err := json.Marshal(fetched.Segments)
	if err != nil {
		return nil, false, err
	}

	now := s.clock.Now()
	transcript := &videodomain.Transcript{
		ID:        s.genID.Generate(),
		VideoRef:  video.ID,
		Text:      fetched.Text,
		Segments:  datatypes.JSON(segments),
		Language:  fetched.Language,
		Source:    fetched.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.videos.SaveTranscript(ctx, transcript); err != nil {
		return nil, false, err
	}
	return transcript, false, nil
}
