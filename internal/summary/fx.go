package summary

import (
	"go.uber.org/fx"

	"github.com/briefly-app/briefly/internal/summary/service"
)

var Module = fx.Module("summary",
	fx.Provide(service.NewService),
)
