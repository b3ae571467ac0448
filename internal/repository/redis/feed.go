package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evotags/evotags/internal/domain"
)

// FeedKey prefixes the cached feed projection. Each generation gets its own
// key so a reader that loaded the feed before an invalidation cannot overwrite
// the newer generation.
const FeedKey = "feed:recent"

// FeedGenKey holds the current feed generation. A missing key is generation 0.
const FeedGenKey = "feed:gen"

// FeedCache implements repository.FeedCache using Redis.
type FeedCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewFeedCache creates a new Redis-backed feed cache.
func NewFeedCache(client redis.Cmdable, ttl time.Duration) *FeedCache {
	return &FeedCache{
		client: client,
		ttl:    ttl,
	}
}

func feedKey(gen int64) string {
	return fmt.Sprintf("%s:%d", FeedKey, gen)
}

func (c *FeedCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, FeedGenKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get feed generation: %w", err)
	}
	return gen, nil
}

// Get returns the cached feed of the current generation. A missing key is a
// miss, not an error. The returned generation must be passed to Set.
func (c *FeedCache) Get(ctx context.Context) ([]domain.FeedItem, int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false, err
	}

	data, err := c.client.Get(ctx, feedKey(gen)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, false, nil
		}
		return nil, gen, false, fmt.Errorf("redis get feed: %w", err)
	}

	var items []domain.FeedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, gen, false, fmt.Errorf("unmarshal feed: %w", err)
	}

	return items, gen, true, nil
}

// Set stores the feed under generation gen with the configured TTL. Writes
// for a superseded generation land on a key no reader looks at.
func (c *FeedCache) Set(ctx context.Context, gen int64, items []domain.FeedItem) error {
	if items == nil {
		items = []domain.FeedItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}

	if err := c.client.Set(ctx, feedKey(gen), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set feed: %w", err)
	}

	return nil
}

// Invalidate starts a new feed generation. Entries of older generations
// expire with their TTL.
func (c *FeedCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, FeedGenKey).Err(); err != nil {
		return fmt.Errorf("redis incr feed generation: %w", err)
	}

	return nil
}
