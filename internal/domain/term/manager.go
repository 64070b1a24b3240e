package term

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/config"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/logging"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/monitoring"
	"github.com/CodeYard/DevSession/backend/internal/shared/id"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

const (
	defaultCols uint16 = 80
	defaultRows uint16 = 24
)

// Broadcaster delivers events to the session's connected clients.
type Broadcaster interface {
	Broadcast(ev types.Event)
}

// Manager runs the PTY-backed shells of one session. Unlike plain
// processes, terminals are reaped with their session: a shell has no
// meaning once its working tree is gone.
type Manager struct {
	sessionID string
	root      string
	cfg       config.ProcessConfig
	terms     sync.Map // map[string]*Terminal
	bus       Broadcaster
	logger    *logging.Logger
	metrics   *monitoring.Metrics
}

// Terminal is one open PTY shell.
type Terminal struct {
	ID        id.TerminalID
	Shell     string
	StartedAt time.Time

	mu     sync.RWMutex
	cols   uint16
	rows   uint16
	closed bool

	cmd  *exec.Cmd
	ptmx *os.File
	done chan struct{}
}

// NewManager creates a terminal manager rooted at the session's directory.
func NewManager(sessionID, root string, cfg config.ProcessConfig, bus Broadcaster, logger *logging.Logger, metrics *monitoring.Metrics) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		sessionID: sessionID,
		root:      root,
		cfg:       cfg,
		bus:       bus,
		logger:    logger,
		metrics:   metrics,
	}
}

// Open starts a PTY shell in the session root and begins streaming its
// output as terminal-output events. An empty shell falls back to the
// configured default; zero dimensions fall back to 80x24.
func (m *Manager) Open(shell string, cols, rows uint16) (*Terminal, error) {
	if shell == "" {
		shell = m.cfg.DefaultShell
	}
	if cols == 0 {
		cols = defaultCols
	}
	if rows == 0 {
		rows = defaultRows
	}

	cmd := exec.Command(shell)
	cmd.Dir = m.root
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, types.SpawnFailure("start pty %s: %v", shell, err)
	}

	t := &Terminal{
		ID:        id.NewTerminalID(),
		Shell:     shell,
		StartedAt: time.Now(),
		cols:      cols,
		rows:      rows,
		cmd:       cmd,
		ptmx:      ptmx,
		done:      make(chan struct{}),
	}
	m.terms.Store(t.ID.String(), t)

	if m.metrics != nil {
		m.metrics.IncTerminalsOpened()
		m.metrics.SetTerminalsActive(m.Count())
	}
	m.logger.Info("terminal opened",
		zap.String("session_id", m.sessionID),
		zap.String("terminal_id", t.ID.String()),
		zap.String("shell", shell),
	)

	go m.readOutput(t)
	go m.monitor(t)

	return t, nil
}

// readOutput relays PTY output to the hub until the shell exits.
func (m *Manager) readOutput(t *Terminal) {
	buf := make([]byte, 4096)
	for {
		n, err := t.ptmx.Read(buf)
		if n > 0 {
			m.emit(types.NewTerminalOutputEvent(m.sessionID, t.ID.String(), string(buf[:n])))
		}
		if err != nil {
			// A closed PTY surfaces as EIO rather than EOF.
			if err != io.EOF && !errors.Is(err, syscall.EIO) {
				m.logger.Debug("terminal read ended",
					zap.String("terminal_id", t.ID.String()),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// monitor reaps the shell, emits terminal-closed with its exit code,
// and drops the terminal from the set.
func (m *Manager) monitor(t *Terminal) {
	code := 0
	if err := t.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				code = 128 + int(ws.Signal())
			}
		} else {
			code = -1
		}
	}

	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.ptmx.Close()

	m.terms.Delete(t.ID.String())
	m.emit(types.NewTerminalClosedEvent(m.sessionID, t.ID.String(), code))
	close(t.done)

	if m.metrics != nil {
		m.metrics.SetTerminalsActive(m.Count())
	}
	m.logger.Info("terminal closed",
		zap.String("session_id", m.sessionID),
		zap.String("terminal_id", t.ID.String()),
		zap.Int("exit_code", code),
	)
}

// Write feeds keystrokes to the shell.
func (m *Manager) Write(termID string, data []byte) error {
	t, err := m.get(termID)
	if err != nil {
		return err
	}

	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return types.NotFound("terminal not found: %s", termID)
	}

	if _, err := t.ptmx.Write(data); err != nil {
		return types.Internal("terminal write: %v", err)
	}
	return nil
}

// Resize adjusts the PTY window size.
func (m *Manager) Resize(termID string, cols, rows uint16) error {
	t, err := m.get(termID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return types.NotFound("terminal not found: %s", termID)
	}
	t.cols = cols
	t.rows = rows

	if err := pty.Setsize(t.ptmx, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return types.Internal("terminal resize: %v", err)
	}
	return nil
}

// Close interrupts the shell and escalates to SIGKILL after the
// configured grace. The terminal-closed event flows from the monitor
// once the shell is gone.
func (m *Manager) Close(termID string) error {
	t, err := m.get(termID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if t.cmd.Process != nil {
		t.cmd.Process.Signal(os.Interrupt)
		go func() {
			select {
			case <-t.done:
			case <-time.After(m.cfg.KillGrace):
				t.cmd.Process.Kill()
			}
		}()
	}
	return nil
}

// CloseAll force-kills every terminal. Used on session removal.
func (m *Manager) CloseAll() {
	m.terms.Range(func(_, value interface{}) bool {
		t := value.(*Terminal)
		if t.cmd.Process != nil {
			t.cmd.Process.Kill()
		}
		return true
	})
}

// Count returns the number of open terminals.
func (m *Manager) Count() int {
	n := 0
	m.terms.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// List returns the identifiers of all open terminals.
func (m *Manager) List() []string {
	var ids []string
	m.terms.Range(func(key, _ interface{}) bool {
		ids = append(ids, key.(string))
		return true
	})
	return ids
}

// Info returns the wire view of the terminal.
func (t *Terminal) Info() types.TerminalInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return types.TerminalInfo{
		TerminalID: t.ID.String(),
		Shell:      t.Shell,
		Cols:       t.cols,
		Rows:       t.rows,
	}
}

// Done is closed after the terminal-closed broadcast.
func (t *Terminal) Done() <-chan struct{} { return t.done }

func (m *Manager) get(termID string) (*Terminal, error) {
	value, ok := m.terms.Load(termID)
	if !ok {
		return nil, types.NotFound("terminal not found: %s", termID)
	}
	return value.(*Terminal), nil
}

func (m *Manager) emit(ev types.Event) {
	if m.bus != nil {
		m.bus.Broadcast(ev)
	}
}
