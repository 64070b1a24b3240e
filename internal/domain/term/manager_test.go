package term

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/config"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

type eventSink struct {
	mu     sync.Mutex
	events []types.Event
}

func (s *eventSink) Broadcast(ev types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) byType(t types.EventType) []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestManager(t *testing.T) (*Manager, *eventSink) {
	t.Helper()
	sink := &eventSink{}
	cfg := config.Default().Process
	cfg.DefaultShell = "/bin/sh"
	cfg.KillGrace = 200 * time.Millisecond
	return NewManager("sess_test", t.TempDir(), cfg, sink, nil, nil), sink
}

func TestOpenWriteAndExit(t *testing.T) {
	m, sink := newTestManager(t)

	term, err := m.Open("", 0, 0)
	require.NoError(t, err)
	require.True(t, term.ID.IsValid())
	assert.Equal(t, "/bin/sh", term.Shell)

	info := term.Info()
	assert.Equal(t, uint16(80), info.Cols)
	assert.Equal(t, uint16(24), info.Rows)
	assert.Equal(t, 1, m.Count())

	require.NoError(t, m.Write(term.ID.String(), []byte("echo term-says-hi\n")))

	assert.Eventually(t, func() bool {
		for _, ev := range sink.byType(types.EventTerminalOutput) {
			if strings.Contains(ev.Data, "term-says-hi") {
				return ev.TerminalID == term.ID.String()
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond, "expected echoed output")

	require.NoError(t, m.Write(term.ID.String(), []byte("exit 7\n")))

	select {
	case <-term.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}

	closed := sink.byType(types.EventTerminalClosed)
	require.Len(t, closed, 1)
	require.NotNil(t, closed[0].ExitCode)
	assert.Equal(t, 7, *closed[0].ExitCode)
	assert.Equal(t, 0, m.Count())

	err = m.Write(term.ID.String(), []byte("late\n"))
	assert.True(t, types.IsNotFound(err))
}

func TestResize(t *testing.T) {
	m, _ := newTestManager(t)

	term, err := m.Open("/bin/sh", 80, 24)
	require.NoError(t, err)
	defer m.CloseAll()

	require.NoError(t, m.Resize(term.ID.String(), 120, 40))
	info := term.Info()
	assert.Equal(t, uint16(120), info.Cols)
	assert.Equal(t, uint16(40), info.Rows)

	err = m.Resize("term_nope", 80, 24)
	assert.True(t, types.IsNotFound(err))
}

func TestCloseReapsShell(t *testing.T) {
	m, sink := newTestManager(t)

	term, err := m.Open("/bin/sh", 80, 24)
	require.NoError(t, err)

	require.NoError(t, m.Close(term.ID.String()))

	select {
	case <-term.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("terminal did not close")
	}

	assert.Len(t, sink.byType(types.EventTerminalClosed), 1)
	assert.Equal(t, 0, m.Count())

	// Closing an unknown terminal is not_found.
	err = m.Close(term.ID.String())
	assert.True(t, types.IsNotFound(err))
}

func TestCloseAll(t *testing.T) {
	m, _ := newTestManager(t)

	a, err := m.Open("/bin/sh", 80, 24)
	require.NoError(t, err)
	b, err := m.Open("/bin/sh", 80, 24)
	require.NoError(t, err)

	m.CloseAll()

	for _, term := range []*Terminal{a, b} {
		select {
		case <-term.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("terminal survived CloseAll")
		}
	}
	assert.Equal(t, 0, m.Count())
}

func TestUnknownTerminal(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.Write("term_missing", []byte("x"))
	assert.True(t, types.IsNotFound(err))

	err = m.Close("term_missing")
	assert.True(t, types.IsNotFound(err))
}
