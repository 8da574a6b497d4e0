package auth

import (
	"go.uber.org/fx"

	"github.com/briefly-app/briefly/internal/auth/repository"
	"github.com/briefly-app/briefly/internal/auth/service"
)

var Module = fx.Module("auth",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
