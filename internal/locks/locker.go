package locks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a best-effort distributed lock on redis. A nil Locker is
// valid and never holds anything, so callers degrade to unguarded
// generation when redis is not configured.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// GenerationKey names the claim for one (video, provider, length)
// generation so concurrent cache misses collapse into a single
// upstream call.
func GenerationKey(videoID, provider, length string) string {
	return fmt.Sprintf("briefly:generate:%s:%s:%s", videoID, provider, length)
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", true, nil
	}
	if strings.TrimSpace(key) == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// WaitForRelease polls until the key disappears or the context ends.
// Losers of the generation claim use it to pick up the winner's result.
func (l *Locker) WaitForRelease(ctx context.Context, key string, interval time.Duration) error {
	if l == nil || l.client == nil {
		return nil
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		exists, err := l.client.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
