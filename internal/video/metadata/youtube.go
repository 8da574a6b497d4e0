// Package metadata resolves title and channel for freshly seen video ids.
package metadata

import (
	"context"

	"github.com/briefly-app/briefly/internal/video/domain"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"
)

type YouTubeResolver struct {
	svc *youtube.Service
	log *zap.Logger
}

func NewYouTubeResolver(ctx context.Context, apiKey string, log *zap.Logger) (*YouTubeResolver, error) {
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &YouTubeResolver{
		svc: svc,
		log: log.Named("video.metadata"),
	}, nil
}

func (r *YouTubeResolver) Resolve(ctx context.Context, videoID string) (domain.Metadata, error) {
	response, err := r.svc.Videos.
		List([]string{"snippet"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return domain.Metadata{}, err
	}
	if len(response.Items) == 0 || response.Items[0].Snippet == nil {
		// unknown or unlisted video; cache it without metadata
		return domain.Metadata{}, nil
	}
	snippet := response.Items[0].Snippet
	return domain.Metadata{
		Title:     snippet.Title,
		ChannelID: snippet.ChannelId,
	}, nil
}

// NoopResolver is used when no YouTube API key is configured.
type NoopResolver struct{}

func (NoopResolver) Resolve(context.Context, string) (domain.Metadata, error) {
	return domain.Metadata{}, nil
}
