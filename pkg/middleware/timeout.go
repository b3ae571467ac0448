package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/evotags/evotags/pkg/httputil"
	"github.com/evotags/evotags/pkg/logger"
)

// Timeout bounds each request with a context deadline. If the handler gives
// up because the deadline passed and has not written a response yet, the
// client gets a retriable 503.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			if !rec.wroteHeader && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				httputil.WriteJSON(rec, http.StatusServiceUnavailable, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:      "TIMEOUT",
						Message:   "request timed out, please retry",
						RequestID: logger.CorrelationIDFromContext(r.Context()),
					},
				})
			}
		})
	}
}
