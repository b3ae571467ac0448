package service

import (
	"context"
	"log/slog"

	"github.com/evotags/evotags/internal/auth"
	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/internal/repository"
	"github.com/evotags/evotags/pkg/logger"
)

// AccountService resolves platform identities to accounts.
type AccountService struct {
	accounts   repository.AccountRepository
	reviews    repository.ReviewRepository
	verifier   auth.Verifier
	events     EventPublisher
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(
	accounts repository.AccountRepository,
	reviews repository.ReviewRepository,
	verifier auth.Verifier,
	events EventPublisher,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:   accounts,
		reviews:    reviews,
		verifier:   verifier,
		events:     events,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Register creates or refreshes the account for identity. An empty photoRef
// keeps the stored photo.
func (s *AccountService) Register(ctx context.Context, identity *domain.PlatformIdentity, photoRef string) (*domain.Account, error) {
	account, created, err := s.accounts.Upsert(ctx, domain.AccountFromIdentity(identity, photoRef))
	if err != nil {
		return nil, storeErr("register account", err)
	}

	if created {
		s.logger.InfoContext(ctx, "account registered",
			slog.String("account_id", account.ID),
			slog.Int64("platform_id", account.PlatformID),
		)
	}

	s.dispatcher.Go(ctx, "publish account.registered", func(ctx context.Context) error {
		return s.events.PublishAccountRegistered(ctx, account, created)
	})

	return account, nil
}

// Me verifies initData, registers the caller on contact and returns their
// profile with the reviews they received.
func (s *AccountService) Me(ctx context.Context, initData string) (*domain.Profile, error) {
	identity, err := s.verifier.Verify(initData)
	if err != nil {
		return nil, err
	}

	account, err := s.Register(ctx, identity, "")
	if err != nil {
		return nil, err
	}
	ctx = logger.WithAccountID(ctx, account.ID)

	reviews, err := s.reviews.ListByTarget(ctx, account.ID)
	if err != nil {
		return nil, storeErr("list received reviews", err)
	}

	return domain.NewProfile(account, reviews), nil
}

// List returns every account, newest first.
func (s *AccountService) List(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	return accounts, nil
}
