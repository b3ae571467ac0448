package repository

import (
	"context"

	"github.com/evotags/evotags/internal/domain"
)

// AccountRepository defines account persistence.
type AccountRepository interface {
	// Upsert creates the account for a.PlatformID or updates its display
	// attributes. An empty PhotoURL keeps the stored photo. The returned bool
	// is true when a new row was created.
	Upsert(ctx context.Context, a *domain.Account) (*domain.Account, bool, error)

	// GetByID retrieves an account by internal id.
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// GetByPlatformID retrieves an account by Telegram user id.
	GetByPlatformID(ctx context.Context, platformID int64) (*domain.Account, error)

	// List returns every account, newest first.
	List(ctx context.Context) ([]domain.Account, error)

	// DeletePlatformRange deletes accounts whose platform id lies in
	// [min, max] and returns how many were removed.
	DeletePlatformRange(ctx context.Context, min, max int64) (int64, error)
}

// ReviewRepository defines review persistence.
type ReviewRepository interface {
	// Submit stores r in one transaction serialized per (author, target).
	// If a legacy pair constraint rejects the insert, the most recent review
	// of the pair is updated instead and the result reports Updated.
	Submit(ctx context.Context, r *domain.Review) (*domain.SubmitResult, error)

	// ListByTarget returns the anonymous views of reviews about targetID,
	// newest first.
	ListByTarget(ctx context.Context, targetID string) ([]domain.ReviewView, error)

	// Feed returns the newest reviews joined with their target.
	Feed(ctx context.Context, limit int) ([]domain.FeedItem, error)

	// ReviewedTargets returns the distinct target ids authorID has reviewed.
	ReviewedTargets(ctx context.Context, authorID string) ([]string, error)

	// Exists reports whether authorID has reviewed targetID at least once.
	Exists(ctx context.Context, authorID, targetID string) (bool, error)
}

// FeedCache caches the feed projection.
type FeedCache interface {
	// Get returns the cached feed and the generation it was read at; ok is
	// false on a miss.
	Get(ctx context.Context) (items []domain.FeedItem, gen int64, ok bool, err error)

	// Set stores the feed under the generation returned by Get.
	Set(ctx context.Context, gen int64, items []domain.FeedItem) error

	// Invalidate moves the cache to a new generation.
	Invalidate(ctx context.Context) error
}
