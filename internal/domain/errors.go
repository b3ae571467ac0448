package domain

import (
	"net/http"

	apperrors "github.com/evotags/evotags/pkg/errors"
)

// Domain errors. Wrap them with fmt.Errorf("%w: ...") to keep a reason for
// the logs; the client sees only Code and Message.
var (
	ErrUnauthenticated = apperrors.Unauthenticated("invalid or missing telegram credentials")
	ErrAuthorNotFound  = apperrors.New("AUTHOR_NOT_FOUND", "author account is not registered, open the bot first", http.StatusNotFound, apperrors.ErrNotFound)
	ErrTargetNotFound  = apperrors.New("TARGET_NOT_FOUND", "target account not found", http.StatusNotFound, apperrors.ErrNotFound)
	ErrSelfReview      = apperrors.New("SELF_REVIEW_FORBIDDEN", "you cannot review yourself", http.StatusBadRequest, apperrors.ErrForbidden)
	ErrAccountNotFound = apperrors.New("ACCOUNT_NOT_FOUND", "account not found", http.StatusNotFound, apperrors.ErrNotFound)
)
