package credits

import (
	"github.com/briefly-app/briefly/internal/credits/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credits.service",
	fx.Provide(service.NewService),
)
