package payment

import (
	"go.uber.org/fx"

	"github.com/briefly-app/briefly/internal/config"
	"github.com/briefly-app/briefly/internal/payment/domain"
	"github.com/briefly-app/briefly/internal/payment/gateway"
	"github.com/briefly-app/briefly/internal/payment/repository"
	"github.com/briefly-app/briefly/internal/payment/service"
)

var Module = fx.Module("payment",
	fx.Provide(func(cfg config.Config) domain.Gateway {
		return gateway.NewRazorpay(cfg.PaymentBaseURL, cfg.PaymentKeyID, cfg.PaymentKeySecret)
	}),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
