package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/briefly-app/briefly/internal/analytics"
	"github.com/briefly-app/briefly/internal/auth"
	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/config"
	"github.com/briefly-app/briefly/internal/credits"
	"github.com/briefly-app/briefly/internal/locks"
	"github.com/briefly-app/briefly/internal/logger"
	"github.com/briefly-app/briefly/internal/migration"
	obsmetrics "github.com/briefly-app/briefly/internal/observability/metrics"
	"github.com/briefly-app/briefly/internal/notification"
	"github.com/briefly-app/briefly/internal/payment"
	"github.com/briefly-app/briefly/internal/ratelimit"
	"github.com/briefly-app/briefly/internal/referral"
	"github.com/briefly-app/briefly/internal/scheduler"
	"github.com/briefly-app/briefly/internal/server"
	"github.com/briefly-app/briefly/internal/subscription"
	"github.com/briefly-app/briefly/internal/summarizer"
	"github.com/briefly-app/briefly/internal/summary"
	"github.com/briefly-app/briefly/internal/transcript"
	"github.com/briefly-app/briefly/internal/usage"
	"github.com/briefly-app/briefly/internal/user"
	"github.com/briefly-app/briefly/internal/video"
	"github.com/briefly-app/briefly/pkg/db"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		obsmetrics.Module,
		locks.Module,
		ratelimit.Module,

		// accounts and billing
		user.Module,
		auth.Module,
		credits.Module,
		referral.Module,
		subscription.Module,
		payment.Module,

		// summarization pipeline
		video.Module,
		transcript.Module,
		summarizer.Module,
		summary.Module,
		usage.Module,

		// maintenance and reporting
		notification.Module,
		analytics.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
