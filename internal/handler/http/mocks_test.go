package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/internal/service"
	"github.com/evotags/evotags/internal/telegram"
	"github.com/evotags/evotags/pkg/health"
	"github.com/evotags/evotags/pkg/middleware"
)

// ============================================================================
// Mock services
// ============================================================================

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) Me(ctx context.Context, initData string) (*domain.Profile, error) {
	args := m.Called(ctx, initData)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *mockAccountService) List(ctx context.Context) ([]domain.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

type mockReviewService struct {
	mock.Mock
}

func (m *mockReviewService) Submit(ctx context.Context, in service.SubmitInput) (*domain.SubmitResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubmitResult), args.Error(1)
}

func (m *mockReviewService) ListForTarget(ctx context.Context, targetID string) ([]domain.ReviewView, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReviewView), args.Error(1)
}

type mockFeedService struct {
	mock.Mock
}

func (m *mockFeedService) Feed(ctx context.Context) ([]domain.FeedItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FeedItem), args.Error(1)
}

type mockStatusService struct {
	mock.Mock
}

func (m *mockStatusService) Statuses(ctx context.Context, initData string) (map[string]bool, error) {
	args := m.Called(ctx, initData)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

type mockAdminService struct {
	mock.Mock
}

func (m *mockAdminService) Seed(ctx context.Context) (*service.SeedResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SeedResult), args.Error(1)
}

func (m *mockAdminService) Purge(ctx context.Context) (*service.PurgeResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PurgeResult), args.Error(1)
}

type mockPhotoSource struct {
	mock.Mock
}

func (m *mockPhotoSource) GetFile(ctx context.Context, fileID string) (*telegram.File, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.File), args.Error(1)
}

func (m *mockPhotoSource) OpenFile(ctx context.Context, filePath string) (*telegram.FileContent, error) {
	args := m.Called(ctx, filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.FileContent), args.Error(1)
}

// ============================================================================
// Helpers
// ============================================================================

type testServer struct {
	accounts *mockAccountService
	reviews  *mockReviewService
	feed     *mockFeedService
	statuses *mockStatusService
	admin    *mockAdminService
	photos   *mockPhotoSource
	handler  http.Handler
}

type serverOption func(*RouterConfig)

func withoutAdmin() serverOption {
	return func(c *RouterConfig) { c.Admin = nil }
}

func withoutPhotos() serverOption {
	return func(c *RouterConfig) { c.Photos = nil }
}

func withTimeout(d time.Duration) serverOption {
	return func(c *RouterConfig) { c.RequestTimeout = d }
}

func withWriteLimit(cfg middleware.RateLimitConfig) serverOption {
	return func(c *RouterConfig) { c.WriteLimit = cfg }
}

func newTestServer(opts ...serverOption) *testServer {
	s := &testServer{
		accounts: new(mockAccountService),
		reviews:  new(mockReviewService),
		feed:     new(mockFeedService),
		statuses: new(mockStatusService),
		admin:    new(mockAdminService),
		photos:   new(mockPhotoSource),
	}
	cfg := RouterConfig{
		ServiceName:    "evotags",
		Accounts:       s.accounts,
		Reviews:        s.reviews,
		Feed:           s.feed,
		Statuses:       s.statuses,
		Photos:         s.photos,
		Admin:          s.admin,
		Health:         health.NewHandler(),
		Registry:       prometheus.NewRegistry(),
		CORS:           middleware.DefaultCORSConfig(),
		RequestTimeout: 5 * time.Second,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s.handler = NewRouter(cfg)
	return s
}

func jsonRequest(method, target, body string) *http.Request {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}
