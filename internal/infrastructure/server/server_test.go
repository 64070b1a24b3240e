package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/config"
)

// Prometheus collectors land in the process-global registry, so the full
// stack is built exactly once and shared across subtests. The limiter
// subtest drains the shared bucket and therefore runs last.
func TestServerWiring(t *testing.T) {
	cfg := config.Default()
	cfg.Workspace.Root = t.TempDir()
	cfg.Logging.Level = "error"

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	do := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		srv.Router().ServeHTTP(w, req)
		return w
	}

	t.Run("health", func(t *testing.T) {
		w := do(http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "healthy")
	})

	t.Run("root banner", func(t *testing.T) {
		w := do(http.MethodGet, "/")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "devsession-backend")
	})

	t.Run("trace headers on every response", func(t *testing.T) {
		w := do(http.MethodGet, "/health")
		assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
		assert.NotEmpty(t, w.Header().Get("X-Span-ID"))
	})

	t.Run("prometheus scrape", func(t *testing.T) {
		w := do(http.MethodGet, "/metrics")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "backend_sessions_active")
	})

	t.Run("websocket route validates before upgrade", func(t *testing.T) {
		w := do(http.MethodGet, "/ws")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_argument")
	})

	t.Run("unknown route", func(t *testing.T) {
		w := do(http.MethodGet, "/definitely-not-a-route")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("limiter guards the api but not the scrape", func(t *testing.T) {
		var limited bool
		for i := 0; i < cfg.RateLimit.Burst+50 && !limited; i++ {
			limited = do(http.MethodGet, "/stats").Code == http.StatusTooManyRequests
		}
		assert.True(t, limited, "api group should throttle a hot client")
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/metrics").Code)
	})
}
