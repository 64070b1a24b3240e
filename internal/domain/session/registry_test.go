package session

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeYard/DevSession/backend/internal/domain/hub"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/config"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

func newTestRegistry(t *testing.T, grace time.Duration) *Registry {
	t.Helper()
	cfg := config.Default()
	cfg.Workspace.Root = t.TempDir()
	cfg.Session.GracePeriod = grace
	cfg.Preview.ReadyDelay = 50 * time.Millisecond
	return NewRegistry(cfg, hub.New(nil, nil), nil, nil)
}

// collect drains events from a connection until the window elapses.
func collect(c *hub.Conn, window time.Duration) []types.Event {
	deadline := time.After(window)
	var out []types.Event
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
}

func countType(events []types.Event, t types.EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, time.Minute)

	a, err := r.GetOrCreate("sess_one")
	require.NoError(t, err)
	b, err := r.GetOrCreate("sess_one")
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := r.GetOrCreate("sess_two")
	require.NoError(t, err)
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, r.Count())

	// The backing directory exists as soon as the session does.
	info, err := os.Stat(a.Root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGetOrCreateIsAtomicUnderContention(t *testing.T) {
	r := newTestRegistry(t, time.Minute)

	var wg sync.WaitGroup
	results := make([]*Session, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s, err := r.GetOrCreate("sess_contended")
			assert.NoError(t, err)
			results[n] = s
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
	assert.Equal(t, 1, r.Count())
}

func TestValidateID(t *testing.T) {
	valid := []string{"sess_01ABC", "my-project", "a.b", "load_3_99"}
	for _, sid := range valid {
		assert.NoError(t, ValidateID(sid), "expected %q to be accepted", sid)
	}

	invalid := []string{"", "/abs", "nested/id", "a/", ".", "..", "../x", `a\b`}
	for _, sid := range invalid {
		err := ValidateID(sid)
		assert.True(t, types.IsInvalidArgument(err), "expected %q to be rejected", sid)
	}
}

func TestGetMissingSession(t *testing.T) {
	r := newTestRegistry(t, time.Minute)

	_, err := r.Get("sess_ghost")
	assert.True(t, types.IsNotFound(err))
}

func TestDisconnectSchedulesRemoval(t *testing.T) {
	r := newTestRegistry(t, 100*time.Millisecond)

	_, conn, err := r.Connect("sess_transient")
	require.NoError(t, err)
	require.Equal(t, 1, r.Count())

	s, err := r.Get("sess_transient")
	require.NoError(t, err)
	root := s.Root
	require.NoError(t, s.Files.Write(context.Background(), "/kept.txt", []byte("survives")))

	r.Disconnect(conn)

	assert.Eventually(t, func() bool {
		_, err := r.Get("sess_transient")
		return types.IsNotFound(err)
	}, 2*time.Second, 10*time.Millisecond, "session should be reaped after the grace period")

	// Removal without purge leaves the mirror on disk.
	_, err = os.Stat(root)
	assert.NoError(t, err)
}

func TestReconnectWithinGraceCancelsRemoval(t *testing.T) {
	r := newTestRegistry(t, 200*time.Millisecond)

	s1, conn, err := r.Connect("sess_sticky")
	require.NoError(t, err)
	r.Disconnect(conn)

	// Reconnect while the removal timer is pending.
	time.Sleep(50 * time.Millisecond)
	s2, conn2, err := r.Connect("sess_sticky")
	require.NoError(t, err)
	defer r.Disconnect(conn2)

	assert.Same(t, s1, s2, "reconnect should land on the same session")

	// Well past the original grace deadline the session is still here.
	time.Sleep(400 * time.Millisecond)
	got, err := r.Get("sess_sticky")
	require.NoError(t, err)
	assert.Same(t, s1, got)
}

func TestRepeatedDisconnectsResetTimer(t *testing.T) {
	r := newTestRegistry(t, 300*time.Millisecond)

	_, conn, err := r.Connect("sess_reset")
	require.NoError(t, err)
	r.Disconnect(conn)

	// A second connect/disconnect cycle mid-window restarts the clock.
	time.Sleep(150 * time.Millisecond)
	_, conn2, err := r.Connect("sess_reset")
	require.NoError(t, err)
	r.Disconnect(conn2)

	// The first timer's deadline passes without removing the session.
	time.Sleep(200 * time.Millisecond)
	_, err = r.Get("sess_reset")
	assert.NoError(t, err, "reset timer should still be pending")

	assert.Eventually(t, func() bool {
		_, err := r.Get("sess_reset")
		return types.IsNotFound(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemoveKeepsFilesUnlessPurged(t *testing.T) {
	r := newTestRegistry(t, time.Minute)

	s, err := r.GetOrCreate("sess_kept")
	require.NoError(t, err)
	require.NoError(t, s.Files.Write(context.Background(), "/data.txt", []byte("payload")))
	root := s.Root

	require.NoError(t, r.Remove("sess_kept", false))
	_, err = r.Get("sess_kept")
	assert.True(t, types.IsNotFound(err))

	// Mirror survives; recreating the session sees the old files.
	reborn, err := r.GetOrCreate("sess_kept")
	require.NoError(t, err)
	content, err := reborn.Files.Read(context.Background(), "/data.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))

	require.NoError(t, r.Remove("sess_kept", true))
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err), "purge should delete the mirror")
}

func TestRemoveMissingSession(t *testing.T) {
	r := newTestRegistry(t, time.Minute)

	err := r.Remove("sess_ghost", false)
	assert.True(t, types.IsNotFound(err))
}

func TestFirstSpawnSchedulesPreviewReadyOnce(t *testing.T) {
	r := newTestRegistry(t, time.Minute)

	s, conn, err := r.Connect("sess_preview")
	require.NoError(t, err)
	defer r.Disconnect(conn)

	h1, err := s.Spawn("true", nil, "")
	require.NoError(t, err)
	h1.Wait()
	h2, err := s.Spawn("true", nil, "")
	require.NoError(t, err)
	h2.Wait()

	events := collect(conn, 500*time.Millisecond)
	require.Equal(t, 1, countType(events, types.EventPreviewReady),
		"preview-ready fires exactly once per session")

	for _, ev := range events {
		if ev.Type == types.EventPreviewReady {
			assert.Equal(t, "/preview/sess_preview/", ev.URL)
			assert.Greater(t, ev.Timestamp, int64(0))
		}
	}
}

func TestRemoveStopsPendingPreview(t *testing.T) {
	r := newTestRegistry(t, time.Minute)

	s, conn, err := r.Connect("sess_cutshort")
	require.NoError(t, err)
	defer conn.Close()

	h, err := s.Spawn("true", nil, "")
	require.NoError(t, err)
	h.Wait()

	require.NoError(t, r.Remove("sess_cutshort", false))

	events := collect(conn, 300*time.Millisecond)
	assert.Equal(t, 0, countType(events, types.EventPreviewReady),
		"removal should cancel the pending preview announcement")
}

func TestStats(t *testing.T) {
	r := newTestRegistry(t, time.Minute)

	_, connA, err := r.Connect("sess_a")
	require.NoError(t, err)
	defer r.Disconnect(connA)
	_, connB, err := r.Connect("sess_a")
	require.NoError(t, err)
	defer r.Disconnect(connB)

	sb, err := r.GetOrCreate("sess_b")
	require.NoError(t, err)

	h, err := sb.Spawn("cat", nil, "")
	require.NoError(t, err)

	stats := r.Stats()
	assert.Equal(t, 2, stats.Sessions)
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, 1, stats.Processes)
	assert.Equal(t, 0, stats.Terminals)

	require.NoError(t, sb.Procs.CloseStdin(h.ID.String()))
	h.Wait()
	assert.Equal(t, 0, r.Stats().Processes)
}

func TestSessionInfo(t *testing.T) {
	r := newTestRegistry(t, time.Minute)

	s, conn, err := r.Connect("sess_info")
	require.NoError(t, err)
	defer r.Disconnect(conn)

	info := s.Info()
	assert.Equal(t, "sess_info", info.ID)
	assert.Equal(t, 1, info.Clients)
	assert.Empty(t, info.Processes)
	assert.Empty(t, info.Terminals)
	assert.Equal(t, "/preview/sess_info/", info.PreviewURL)
	assert.False(t, info.CreatedAt.IsZero())
}
