package transcript

import (
	"go.uber.org/fx"

	"github.com/briefly-app/briefly/internal/config"
	"github.com/briefly-app/briefly/internal/transcript/domain"
	"github.com/briefly-app/briefly/internal/transcript/fetcher"
	"github.com/briefly-app/briefly/internal/transcript/service"
)

var Module = fx.Module("transcript",
	fx.Provide(func(cfg config.Config) domain.Fetcher {
		return fetcher.NewHTTPFetcher(cfg.TranscriptServiceURL)
	}),
	fx.Provide(service.NewService),
)
