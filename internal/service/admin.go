package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/internal/repository"
)

type seedAccount struct {
	platformID int64
	username   string
	firstName  string
	lastName   string
	photoURL   string
}

type seedReview struct {
	author, target int
	talents        string
	client         string
}

var seedAccounts = []seedAccount{
	{999999001, "testuser1", "Анна", "Иванова", "https://images.unsplash.com/photo-1494790108755-2616b812c1b9?w=150&h=150&fit=crop&crop=face"},
	{999999002, "testuser2", "Михаил", "Петров", "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=150&h=150&fit=crop&crop=face"},
	{999999003, "testuser3", "Елена", "Сидорова", "https://images.unsplash.com/photo-1438761681033-6461ffad8d80?w=150&h=150&fit=crop&crop=face"},
	{999999004, "testuser4", "Алексей", "Козлов", "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=150&h=150&fit=crop&crop=face"},
}

var seedReviews = []seedReview{
	{
		author:  0,
		target:  1,
		talents: "Отличный аналитик, умеет работать с большими данными. Сильные навыки в SQL и Python. Всегда находит нестандартные решения для сложных задач.",
		client:  "Финтех стартап или банк, которым нужна аналитика пользовательского поведения и оптимизация процессов.",
	},
	{
		author:  1,
		target:  0,
		talents: "Прекрасный UX/UI дизайнер с отличным чувством стиля. Умеет создавать интуитивные интерфейсы и проводить пользовательские исследования.",
		client:  "Мобильное приложение для e-commerce или образовательная платформа, где важен пользовательский опыт.",
	},
	{
		author:  2,
		target:  3,
		talents: "Опытный backend разработчик, знает микросервисную архитектуру. Отличные навыки в Node.js и Docker. Очень ответственный и пунктуальный.",
		client:  "Высоконагруженный сервис или корпоративное решение, где важна надежность и масштабируемость системы.",
	},
}

// SeedResult summarizes a seed run.
type SeedResult struct {
	Accounts       int `json:"accounts"`
	ReviewsCreated int `json:"reviewsCreated"`
	ReviewsSkipped int `json:"reviewsSkipped"`
}

// PurgeResult summarizes a purge run.
type PurgeResult struct {
	DeletedAccounts int64 `json:"deletedAccounts"`
}

// AdminService manages synthetic test data.
type AdminService struct {
	accounts repository.AccountRepository
	reviews  repository.ReviewRepository
	feed     *FeedService
	logger   *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(accounts repository.AccountRepository, reviews repository.ReviewRepository, feed *FeedService, logger *slog.Logger) *AdminService {
	return &AdminService{accounts: accounts, reviews: reviews, feed: feed, logger: logger}
}

// Seed upserts the synthetic accounts and adds each sample review unless its
// author already reviewed its target. Running it twice changes nothing.
func (s *AdminService) Seed(ctx context.Context) (*SeedResult, error) {
	res := &SeedResult{}

	ids := make([]string, len(seedAccounts))
	for i, sa := range seedAccounts {
		a, _, err := s.accounts.Upsert(ctx, &domain.Account{
			PlatformID: sa.platformID,
			Username:   sa.username,
			FirstName:  sa.firstName,
			LastName:   sa.lastName,
			PhotoURL:   sa.photoURL,
		})
		if err != nil {
			return nil, storeErr(fmt.Sprintf("seed account %d", sa.platformID), err)
		}
		ids[i] = a.ID
		res.Accounts++
	}

	for _, sr := range seedReviews {
		authorID, targetID := ids[sr.author], ids[sr.target]

		exists, err := s.reviews.Exists(ctx, authorID, targetID)
		if err != nil {
			return nil, storeErr("check seed review", err)
		}
		if exists {
			res.ReviewsSkipped++
			continue
		}

		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate review id: %w", err)
		}
		if _, err := s.reviews.Submit(ctx, &domain.Review{
			ID:            id.String(),
			AuthorID:      authorID,
			TargetID:      targetID,
			TalentsAnswer: sr.talents,
			ClientAnswer:  sr.client,
			CreatedAt:     time.Now().UTC(),
		}); err != nil {
			return nil, storeErr("seed review", err)
		}
		res.ReviewsCreated++
	}

	s.feed.Invalidate(ctx)

	s.logger.InfoContext(ctx, "test data seeded",
		slog.Int("accounts", res.Accounts),
		slog.Int("reviews_created", res.ReviewsCreated),
		slog.Int("reviews_skipped", res.ReviewsSkipped),
	)
	return res, nil
}

// Purge deletes every synthetic account. Their reviews cascade.
func (s *AdminService) Purge(ctx context.Context) (*PurgeResult, error) {
	n, err := s.accounts.DeletePlatformRange(ctx, domain.SyntheticPlatformIDMin, domain.SyntheticPlatformIDMax)
	if err != nil {
		return nil, storeErr("purge test data", err)
	}

	s.feed.Invalidate(ctx)

	s.logger.InfoContext(ctx, "test data purged", slog.Int64("deleted_accounts", n))
	return &PurgeResult{DeletedAccounts: n}, nil
}
