package cache

import (
	"context"
	"time"

	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

const defaultMetadataTTL = 10 * time.Minute

// MetadataCache memoizes metadata lookups so repeated requests for a video
// during its first generation window hit the YouTube API once.
type MetadataCache struct {
	next videodomain.MetadataResolver
	data Cache[string, videodomain.Metadata]
	ttl  time.Duration
}

func NewMetadataCache(next videodomain.MetadataResolver) *MetadataCache {
	return &MetadataCache{
		next: next,
		data: NewTTLCache[string, videodomain.Metadata](),
		ttl:  defaultMetadataTTL,
	}
}

func (c *MetadataCache) Resolve(ctx context.Context, videoID string) (videodomain.Metadata, error) {
	if md, ok := c.data.Get(videoID); ok {
		return md, nil
	}

	md, err := c.next.Resolve(ctx, videoID)
	if err != nil {
		return videodomain.Metadata{}, err
	}
	c.data.Set(videoID, md, c.ttl)
	return md, nil
}
