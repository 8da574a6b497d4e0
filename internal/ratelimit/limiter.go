// Package ratelimit provides a redis token-bucket limiter for the summarize
// endpoint. A nil Limiter always allows, so the API degrades open when redis
// is not configured.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Refill and consumption run inside redis so concurrent requests across
// instances share one bucket. Returns {allowed, remaining}.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens)}
`

type Limiter struct {
	client *redis.Client
	script *redis.Script
	rate   float64
	burst  int
}

// Result reports one bucket decision.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func NewLimiter(client *redis.Client, rate float64, burst int) *Limiter {
	if client == nil {
		return nil
	}
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		rate:   rate,
		burst:  burst,
	}
}

// UserKey names the bucket for one account.
func UserKey(userID string) string {
	return "briefly:ratelimit:user:" + userID
}

func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	if l == nil || l.client == nil {
		return &Result{Allowed: true}, nil
	}
	if key == "" {
		return nil, errors.New("rate limit key is empty")
	}

	// keep idle buckets around long enough to refill fully
	ttl := time.Duration(float64(l.burst)/l.rate*2) * time.Second
	if ttl < time.Minute {
		ttl = time.Minute
	}

	raw, err := l.script.Run(ctx, l.client, []string{key},
		l.rate, l.burst, ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("rate limit script returned %d values", len(raw))
	}

	allowed, _ := raw[0].(int64)
	remaining, _ := raw[1].(int64)

	result := &Result{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
	}
	if !result.Allowed {
		result.RetryAfter = time.Duration(math.Ceil(1/l.rate)) * time.Second
	}
	return result, nil
}
