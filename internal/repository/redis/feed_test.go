package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evotags/evotags/internal/domain"
)

func setupTestRedis(t *testing.T) (*FeedCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFeedCache(client, 30*time.Second), mr
}

func sampleFeed() []domain.FeedItem {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return []domain.FeedItem{
		{
			ID:            "r2",
			TalentsAnswer: "data skills",
			ClientAnswer:  "fintech clients",
			CreatedAt:     now,
			Target:        domain.FeedTarget{ID: "u2", DisplayName: "Mikhail Petrov", FirstName: "Mikhail", LastName: "Petrov"},
		},
		{
			ID:            "r1",
			TalentsAnswer: "design",
			ClientAnswer:  "retail",
			CreatedAt:     now.Add(-time.Minute),
			Target:        domain.FeedTarget{ID: "u3", DisplayName: "Elena", FirstName: "Elena"},
		},
	}
}

func TestFeedCache_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	items, gen, ok, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, items)
	assert.Equal(t, int64(0), gen)
}

func TestFeedCache_SetThenGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	feed := sampleFeed()

	require.NoError(t, cache.Set(context.Background(), 0, feed))
	assert.True(t, mr.Exists(FeedKey+":0"))
	assert.Equal(t, 30*time.Second, mr.TTL(FeedKey+":0"))

	got, gen, ok, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), gen)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ID)
	assert.Equal(t, "Mikhail Petrov", got[0].Target.DisplayName)
	assert.True(t, feed[0].CreatedAt.Equal(got[0].CreatedAt))
}

func TestFeedCache_EmptyFeedIsAHit(t *testing.T) {
	cache, _ := setupTestRedis(t)

	require.NoError(t, cache.Set(context.Background(), 0, nil))

	got, _, ok, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestFeedCache_Expires(t *testing.T) {
	cache, mr := setupTestRedis(t)

	require.NoError(t, cache.Set(context.Background(), 0, sampleFeed()))
	mr.FastForward(31 * time.Second)

	_, _, ok, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFeedCache_Invalidate(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 0, sampleFeed()))
	require.NoError(t, cache.Invalidate(ctx))

	_, gen, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)

	got, err := mr.Get(FeedGenKey)
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	require.NoError(t, cache.Invalidate(ctx))
	_, gen, _, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen)
}

func TestFeedCache_LateSetAfterInvalidateIsNotServed(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	// A reader misses and loads the feed from the database.
	_, readGen, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// A submit commits and invalidates before the reader stores its result.
	require.NoError(t, cache.Invalidate(ctx))
	require.NoError(t, cache.Set(ctx, readGen, sampleFeed()))

	_, gen, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "feed loaded before the invalidation must not be served")
	assert.Equal(t, readGen+1, gen)

	fresh := sampleFeed()[:1]
	require.NoError(t, cache.Set(ctx, gen, fresh))
	got, _, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestFeedCache_CorruptValue(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(FeedKey+":0", "{{not-json"))

	_, _, ok, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "unmarshal feed")
}

func TestFeedCache_CorruptGeneration(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(FeedGenKey, "seven"))

	_, _, ok, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "feed generation")
}

func TestFeedCache_ServerDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, _, _, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get feed")
}
