// Package testutil provides shared helpers for backend integration tests.
package testutil

import (
	"context"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/config"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/server"
	"github.com/CodeYard/DevSession/backend/internal/shared/id"
	"github.com/CodeYard/DevSession/backend/pkg/client"
)

var (
	backendOnce sync.Once
	backendHTTP *httptest.Server
	backendErr  error
)

// StartBackend boots the full stack once per test binary and returns its
// base URL. Prometheus collectors register process-globally, so the
// stack cannot be rebuilt per test; every test shares this instance with
// rate limiting off and a short removal grace period.
func StartBackend(t *testing.T) string {
	t.Helper()
	backendOnce.Do(func() {
		root, err := os.MkdirTemp("", "devsession-itest-*")
		if err != nil {
			backendErr = err
			return
		}

		cfg := config.Default()
		cfg.Workspace.Root = root
		cfg.Logging.Level = "error"
		cfg.Session.GracePeriod = 2 * time.Second
		cfg.Preview.ReadyDelay = 100 * time.Millisecond
		cfg.RateLimit.Enabled = false

		srv, err := server.NewServer(cfg)
		if err != nil {
			backendErr = err
			return
		}
		backendHTTP = httptest.NewServer(srv.Router())
	})
	require.NoError(t, backendErr, "backend boot failed")
	return backendHTTP.URL
}

// NewSessionID mints a unique session identifier so tests never collide
// on the shared backend.
func NewSessionID(t *testing.T) string {
	t.Helper()
	return id.NewSessionID().String()
}

// Connect dials a fresh client against the shared backend.
func Connect(t *testing.T, sessionID string) *client.Client {
	t.Helper()
	c, err := client.Connect(context.Background(), StartBackend(t), sessionID)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// Drain collects a process's entire output and resolves its exit code.
func Drain(t *testing.T, ctx context.Context, p *client.Process) (string, int) {
	t.Helper()
	var out string
	for chunk := range p.Output() {
		out += chunk.Data
	}
	code, err := p.Wait(ctx)
	require.NoError(t, err)
	return out, code
}
