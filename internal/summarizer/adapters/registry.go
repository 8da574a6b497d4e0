package adapters

import (
	"github.com/briefly-app/briefly/internal/summarizer/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

type Registry struct {
	providers map[videodomain.Provider]domain.Provider
}

func NewRegistry(providers ...domain.Provider) *Registry {
	registry := &Registry{providers: map[videodomain.Provider]domain.Provider{}}
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		registry.providers[provider.Name()] = provider
	}
	return registry
}

func (r *Registry) Get(name videodomain.Provider) (domain.Provider, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider, ok := r.providers[name]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return provider, nil
}

func (r *Registry) Exists(name videodomain.Provider) bool {
	if r == nil {
		return false
	}
	_, ok := r.providers[name]
	return ok
}
