package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordOperation(t *testing.T) {
	m := NewMetrics()

	m.RecordOperation("availability", "block", "success", 5*time.Millisecond)
	m.RecordOperation("availability", "block", "rejected", time.Millisecond)
	m.RecordOperation("availability", "block", "rejected", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("availability", "block", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("availability", "block", "rejected")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	router := chi.NewRouter()
	router.Use(m.Middleware)
	router.Post("/resources/{id}/block", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	router.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resources/"+id+"/block", nil))
		require.Equal(t, http.StatusConflict, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues(http.MethodPost, "/resources/{id}/block", "409")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "scheduler_http_requests_total"))
}
