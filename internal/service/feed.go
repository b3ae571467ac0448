package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/internal/repository"
)

// FeedService projects the newest reviews system-wide. The cache is optional
// and its failures only cost a database read.
type FeedService struct {
	reviews repository.ReviewRepository
	cache   repository.FeedCache
	logger  *slog.Logger
}

// NewFeedService creates a feed service. cache may be nil.
func NewFeedService(reviews repository.ReviewRepository, cache repository.FeedCache, logger *slog.Logger) *FeedService {
	return &FeedService{reviews: reviews, cache: cache, logger: logger}
}

// Feed returns at most domain.FeedLimit entries, newest first.
func (s *FeedService) Feed(ctx context.Context) ([]domain.FeedItem, error) {
	var gen int64
	if s.cache != nil {
		items, g, ok, err := s.cache.Get(ctx)
		gen = g
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "feed cache read failed", slog.String("error", err.Error()))
		case ok:
			return items, nil
		}
	}

	items, err := s.reviews.Feed(ctx, domain.FeedLimit)
	if err != nil {
		return nil, storeErr("load feed", err)
	}
	items = newestFirst(items, domain.FeedLimit)

	if s.cache != nil {
		if err := s.cache.Set(ctx, gen, items); err != nil {
			s.logger.WarnContext(ctx, "feed cache write failed", slog.String("error", err.Error()))
		}
	}
	return items, nil
}

// Invalidate drops the cached feed. Failures are logged.
func (s *FeedService) Invalidate(ctx context.Context) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "feed cache invalidation failed", slog.String("error", err.Error()))
	}
}

// newestFirst orders items by created_at then id, both descending, and keeps
// at most limit of them.
func newestFirst(items []domain.FeedItem, limit int) []domain.FeedItem {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
