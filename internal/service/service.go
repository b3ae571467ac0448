// Package service holds the EVO Tags business logic: identity resolution,
// the review ledger and its read projections.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/pkg/database"
	apperrors "github.com/evotags/evotags/pkg/errors"
)

// EventPublisher publishes domain events after a write.
type EventPublisher interface {
	PublishReviewSubmitted(ctx context.Context, targetID string, result *domain.SubmitResult) error
	PublishAccountRegistered(ctx context.Context, account *domain.Account, created bool) error
}

// storeErr wraps a repository error. Connection-class failures become
// STORE_UNAVAILABLE so clients know a retry is safe.
func storeErr(op string, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if database.IsConnectionError(err) {
		return apperrors.Unavailable(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
