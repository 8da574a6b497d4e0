package summarizer

import (
	"go.uber.org/fx"

	"github.com/briefly-app/briefly/internal/config"
	"github.com/briefly-app/briefly/internal/summarizer/adapters"
	"github.com/briefly-app/briefly/internal/summarizer/adapters/anthropic"
	"github.com/briefly-app/briefly/internal/summarizer/adapters/google"
	"github.com/briefly-app/briefly/internal/summarizer/adapters/openai"
	"github.com/briefly-app/briefly/internal/summarizer/domain"
)

// Providers without an API key configured resolve to nil and stay out
// of the registry, so requests naming them fail with a provider error
// instead of an opaque upstream one.
var Module = fx.Module("summarizer",
	fx.Provide(func(cfg config.Config) *adapters.Registry {
		providers := []domain.Provider{}
		if p := openai.New(cfg.OpenAIAPIKey); p != nil {
			providers = append(providers, p)
		}
		if p := anthropic.New(cfg.AnthropicAPIKey); p != nil {
			providers = append(providers, p)
		}
		if p := google.New(cfg.GeminiAPIKey); p != nil {
			providers = append(providers, p)
		}
		return adapters.NewRegistry(providers...)
	}),
)
