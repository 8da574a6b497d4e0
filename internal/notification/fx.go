package notification

import (
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/briefly-app/briefly/internal/config"
	"github.com/briefly-app/briefly/internal/notification/email"
)

func newEmailProvider(cfg config.Config, log *zap.Logger) email.Provider {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return email.NewNoOp(log)
	}
	return email.NewSMTP(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
	})
}

var Module = fx.Module("notification",
	fx.Provide(newEmailProvider),
	fx.Provide(NewService),
)
