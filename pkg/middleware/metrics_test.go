package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			match := true
			for k, v := range labels {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == k && lp.GetValue() == v {
						found = true
					}
				}
				match = match && found
			}
			if match {
				return m
			}
		}
	}
	return nil
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg, "evotags")

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/api/users/{userId}/reviews", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/"+id+"/reviews", nil))
	}

	metric := findCounter(t, reg, "http_requests_total", map[string]string{
		"service": "evotags",
		"method":  "GET",
		"route":   "/api/users/{userId}/reviews",
		"status":  "404",
	})
	require.NotNil(t, metric)
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())
}

func TestHTTPMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewHTTPMetrics(reg, "evotags")
	assert.Panics(t, func() { NewHTTPMetrics(reg, "evotags") })
}
