package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/evotags/evotags/internal/auth"
	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/internal/repository"
	apperrors "github.com/evotags/evotags/pkg/errors"
)

// StatusService answers "have I already reviewed this account" for every
// other account. Nothing is stored; the map is rebuilt per call.
type StatusService struct {
	accounts repository.AccountRepository
	reviews  repository.ReviewRepository
	verifier auth.Verifier
	logger   *slog.Logger
}

// NewStatusService creates a new status service.
func NewStatusService(accounts repository.AccountRepository, reviews repository.ReviewRepository, verifier auth.Verifier, logger *slog.Logger) *StatusService {
	return &StatusService{accounts: accounts, reviews: reviews, verifier: verifier, logger: logger}
}

// Statuses maps every account id except the caller's to whether the caller
// has reviewed it.
func (s *StatusService) Statuses(ctx context.Context, initData string) (map[string]bool, error) {
	identity, err := s.verifier.Verify(initData)
	if err != nil {
		return nil, err
	}

	caller, err := s.accounts.GetByPlatformID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: platform id %d", domain.ErrAccountNotFound, identity.ID)
		}
		return nil, storeErr("resolve caller", err)
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	reviewed, err := s.reviews.ReviewedTargets(ctx, caller.ID)
	if err != nil {
		return nil, storeErr("list reviewed targets", err)
	}

	done := make(map[string]struct{}, len(reviewed))
	for _, id := range reviewed {
		done[id] = struct{}{}
	}

	statuses := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		if a.ID == caller.ID {
			continue
		}
		_, ok := done[a.ID]
		statuses[a.ID] = ok
	}
	return statuses, nil
}
