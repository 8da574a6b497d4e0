package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/briefly-app/briefly/internal/config"
)

func provideLimiter(client *redis.Client, cfg config.Config) *Limiter {
	return NewLimiter(client, cfg.RateLimitRPS, cfg.RateLimitBurst)
}

var Module = fx.Module("rate.limit",
	fx.Provide(provideLimiter),
)
