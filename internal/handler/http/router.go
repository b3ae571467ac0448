package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evotags/evotags/pkg/health"
	"github.com/evotags/evotags/pkg/httputil"
	"github.com/evotags/evotags/pkg/middleware"
)

// RouterConfig holds everything NewRouter mounts. Photos and Admin may be
// nil, which leaves their routes unmounted.
type RouterConfig struct {
	ServiceName    string
	Accounts       AccountService
	Reviews        ReviewService
	Feed           FeedService
	Statuses       StatusService
	Photos         PhotoSource
	Admin          AdminService
	Health         *health.Handler
	Registry       *prometheus.Registry
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	// WriteLimit throttles writes per client IP. Zero RPS disables it.
	WriteLimit middleware.RateLimitConfig
	Logger     *slog.Logger
}

// apiHealth is the body of GET /api/health.
type apiHealth struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRouter creates a chi router with all EVO Tags routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.NewHTTPMetrics(cfg.Registry, cfg.ServiceName).Handler)

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{Registry: cfg.Registry}))

	accountHandler := NewAccountHandler(cfg.Accounts, cfg.Reviews)
	reviewHandler := NewReviewHandler(cfg.Reviews, cfg.Feed, cfg.Statuses)
	writeLimit := middleware.RateLimit(cfg.WriteLimit, cfg.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			httputil.WriteJSON(w, http.StatusOK, apiHealth{Status: "OK", Timestamp: time.Now().UTC()})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Get("/", accountHandler.List)
			r.With(writeLimit, middleware.NoStore).Post("/me", accountHandler.Me)
			r.Get("/{userId}/reviews", accountHandler.Reviews)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.With(writeLimit).Post("/", reviewHandler.Submit)
			r.Get("/feed", reviewHandler.Feed)
			r.With(middleware.NoStore).Post("/status", reviewHandler.Status)
		})

		if cfg.Photos != nil {
			mediaHandler := NewMediaHandler(cfg.Photos)
			r.With(middleware.CacheControl(PhotoMaxAge)).
				Get("/media/telegram-photo/{fileId}", mediaHandler.TelegramPhoto)
		}

		if cfg.Admin != nil {
			adminHandler := NewAdminHandler(cfg.Admin)
			r.Route("/admin", func(r chi.Router) {
				r.Use(writeLimit)
				r.Post("/seed", adminHandler.Seed)
				r.Delete("/test-data", adminHandler.PurgeTestData)
			})
		}
	})

	return r
}
