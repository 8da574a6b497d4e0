package video

import (
	"context"

	"github.com/briefly-app/briefly/internal/cache"
	"github.com/briefly-app/briefly/internal/config"
	"github.com/briefly-app/briefly/internal/video/domain"
	"github.com/briefly-app/briefly/internal/video/metadata"
	"github.com/briefly-app/briefly/internal/video/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("video",
	fx.Provide(repository.Provide),
	fx.Provide(provideMetadataResolver),
)

func provideMetadataResolver(cfg config.Config, log *zap.Logger) (domain.MetadataResolver, error) {
	if cfg.YouTubeAPIKey == "" {
		log.Warn("no youtube api key configured, video metadata disabled")
		return metadata.NoopResolver{}, nil
	}
	resolver, err := metadata.NewYouTubeResolver(context.Background(), cfg.YouTubeAPIKey, log)
	if err != nil {
		return nil, err
	}
	return cache.NewMetadataCache(resolver), nil
}
