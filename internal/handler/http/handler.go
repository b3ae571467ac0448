// Package http exposes the mini-app REST API.
package http

import (
	"context"
	"net/http"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/internal/service"
	"github.com/evotags/evotags/internal/telegram"
	"github.com/evotags/evotags/pkg/httputil"
	"github.com/evotags/evotags/pkg/logger"
)

// AccountService is the account surface the handlers use.
type AccountService interface {
	Me(ctx context.Context, initData string) (*domain.Profile, error)
	List(ctx context.Context) ([]domain.Account, error)
}

// ReviewService is the review surface the handlers use.
type ReviewService interface {
	Submit(ctx context.Context, in service.SubmitInput) (*domain.SubmitResult, error)
	ListForTarget(ctx context.Context, targetID string) ([]domain.ReviewView, error)
}

// FeedService serves the recent reviews projection.
type FeedService interface {
	Feed(ctx context.Context) ([]domain.FeedItem, error)
}

// StatusService serves the caller's relationship index.
type StatusService interface {
	Statuses(ctx context.Context, initData string) (map[string]bool, error)
}

// AdminService manages synthetic test data.
type AdminService interface {
	Seed(ctx context.Context) (*service.SeedResult, error)
	Purge(ctx context.Context) (*service.PurgeResult, error)
}

// PhotoSource resolves and downloads Telegram files.
type PhotoSource interface {
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	OpenFile(ctx context.Context, filePath string) (*telegram.FileContent, error)
}

// credentialRequest carries only the signed init data.
type credentialRequest struct {
	TelegramData string `json:"telegramData"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, logger.FromContext(r.Context()))
}
