package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/evotags/evotags/internal/auth"
	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/internal/notify"
	"github.com/evotags/evotags/internal/repository"
	apperrors "github.com/evotags/evotags/pkg/errors"
	"github.com/evotags/evotags/pkg/logger"
)

// SubmitInput holds the parameters of a review submission.
type SubmitInput struct {
	InitData      string
	TargetID      string
	TalentsAnswer string
	ClientAnswer  string
}

// ReviewService authorizes review writes and serves per-target reads.
type ReviewService struct {
	accounts   repository.AccountRepository
	reviews    repository.ReviewRepository
	verifier   auth.Verifier
	feed       *FeedService
	notifier   notify.Notifier
	events     EventPublisher
	dispatcher *Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(
	accounts repository.AccountRepository,
	reviews repository.ReviewRepository,
	verifier auth.Verifier,
	feed *FeedService,
	notifier notify.Notifier,
	events EventPublisher,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		accounts:   accounts,
		reviews:    reviews,
		verifier:   verifier,
		feed:       feed,
		notifier:   notifier,
		events:     events,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Submit verifies the caller and stores a review of in.TargetID. The feed
// cache is dropped and the notification and event are dispatched only after
// the write committed.
func (s *ReviewService) Submit(ctx context.Context, in SubmitInput) (*domain.SubmitResult, error) {
	identity, err := s.verifier.Verify(in.InitData)
	if err != nil {
		return nil, err
	}

	author, err := s.accounts.GetByPlatformID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: platform id %d", domain.ErrAuthorNotFound, identity.ID)
		}
		return nil, storeErr("resolve author", err)
	}
	ctx = logger.WithAccountID(ctx, author.ID)

	if _, err := uuid.Parse(in.TargetID); err != nil {
		return nil, apperrors.InvalidInput("targetUserId must be a UUID")
	}
	target, err := s.accounts.GetByID(ctx, in.TargetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTargetNotFound, in.TargetID)
		}
		return nil, storeErr("resolve target", err)
	}

	if author.ID == target.ID {
		return nil, domain.ErrSelfReview
	}

	talents, err := normalizeAnswer("talentsAnswer", in.TalentsAnswer)
	if err != nil {
		return nil, err
	}
	client, err := normalizeAnswer("clientAnswer", in.ClientAnswer)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate review id: %w", err)
	}

	result, err := s.reviews.Submit(ctx, &domain.Review{
		ID:            id.String(),
		AuthorID:      author.ID,
		TargetID:      target.ID,
		TalentsAnswer: talents,
		ClientAnswer:  client,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return nil, storeErr("submit review", err)
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("review_id", result.ReviewID),
		slog.String("target_id", target.ID),
		slog.Bool("updated", result.Updated),
	)

	s.feed.Invalidate(ctx)

	authorName := author.DisplayName()
	s.dispatcher.Go(ctx, "notify review target", func(ctx context.Context) error {
		return s.notifier.ReviewReceived(ctx, target, authorName, talents)
	})
	s.dispatcher.Go(ctx, "publish review.submitted", func(ctx context.Context) error {
		return s.events.PublishReviewSubmitted(ctx, target.ID, result)
	})

	return result, nil
}

// ListForTarget returns the anonymous reviews about targetID, newest first.
// An unknown but well-formed id yields an empty list.
func (s *ReviewService) ListForTarget(ctx context.Context, targetID string) ([]domain.ReviewView, error) {
	if _, err := uuid.Parse(targetID); err != nil {
		return nil, apperrors.InvalidInput("userId must be a UUID")
	}

	views, err := s.reviews.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, storeErr("list reviews", err)
	}
	return views, nil
}

// normalizeAnswer trims s and checks it is non-empty and within
// domain.MaxAnswerLength runes.
func normalizeAnswer(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperrors.InvalidInput(field + " is required")
	}
	if utf8.RuneCountInString(s) > domain.MaxAnswerLength {
		return "", apperrors.InvalidInput(fmt.Sprintf("%s must be at most %d characters", field, domain.MaxAnswerLength))
	}
	return s, nil
}
