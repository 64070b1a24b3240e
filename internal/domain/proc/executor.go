package proc

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/config"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/logging"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/monitoring"
	"github.com/CodeYard/DevSession/backend/internal/shared/id"
	"github.com/CodeYard/DevSession/backend/internal/shared/paths"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// readChunkSize is the read buffer for output streaming. Each Read
// becomes one process-output event, so chunk boundaries follow the
// child's own write pattern for small outputs.
const readChunkSize = 8192

// Broadcaster delivers events to the session's connected clients.
type Broadcaster interface {
	Broadcast(ev types.Event)
}

// Executor spawns and tracks the child processes of one session.
// Commands run with no timeout and survive client disconnects; only an
// explicit Kill or session removal terminates them early.
type Executor struct {
	sessionID string
	root      string
	cfg       config.ProcessConfig
	mu        sync.RWMutex
	procs     map[string]*Handle
	bus       Broadcaster
	logger    *logging.Logger
	metrics   *monitoring.Metrics
}

// NewExecutor creates an executor rooted at the session's directory.
func NewExecutor(sessionID, root string, cfg config.ProcessConfig, bus Broadcaster, logger *logging.Logger, metrics *monitoring.Metrics) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		sessionID: sessionID,
		root:      root,
		cfg:       cfg,
		procs:     make(map[string]*Handle),
		bus:       bus,
		logger:    logger,
		metrics:   metrics,
	}
}

// Spawn starts command with args in cwd (session-relative, created if
// absent) and begins streaming its output. A failure to start yields a
// spawn_failure with no handle registered and no completion event ever
// broadcast. Concurrent spawns are not queued or limited.
func (e *Executor) Spawn(command string, args []string, cwd string) (*Handle, error) {
	if command == "" {
		return nil, types.InvalidArgument("command is required")
	}

	dir, err := e.resolveCwd(cwd)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	// Own process group so Kill can reach the child's children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, types.SpawnFailure("stdin pipe: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, types.SpawnFailure("stdout pipe: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, types.SpawnFailure("stderr pipe: %v", err)
	}

	h := &Handle{
		ID:        id.NewProcessID(),
		Command:   command,
		StartedAt: time.Now(),
		cmd:       cmd,
		stdin:     &stdinPipe{w: stdin},
		stdout:    newTail(e.cfg.OutputBufferBytes),
		stderr:    newTail(e.cfg.OutputBufferBytes),
		done:      make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		h.stdin.Close()
		return nil, types.SpawnFailure("start %s: %v", command, err)
	}
	h.Pid = cmd.Process.Pid

	e.mu.Lock()
	e.procs[h.ID.String()] = h
	active := len(e.procs)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.IncProcessesSpawned()
		e.metrics.SetProcessesActive(active)
	}
	e.logger.Info("process spawned",
		zap.String("session_id", e.sessionID),
		zap.String("process_id", h.ID.String()),
		zap.String("command", command),
		zap.Int("pid", h.Pid),
	)

	var readers sync.WaitGroup
	readers.Add(2)
	go e.stream(h, stdout, types.StreamStdout, &readers)
	go e.stream(h, stderr, types.StreamStderr, &readers)
	go e.awaitExit(h, &readers)

	return h, nil
}

// stream relays one pipe to the hub chunk by chunk until EOF.
func (e *Executor) stream(h *Handle, r interface{ Read([]byte) (int, error) }, stream types.Stream, readers *sync.WaitGroup) {
	defer readers.Done()

	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			h.tailFor(stream).append(chunk)
			e.emit(types.NewProcessOutputEvent(e.sessionID, h.ID.String(), string(chunk), stream))
		}
		if err != nil {
			return
		}
	}
}

// awaitExit reaps the child once both streams hit EOF, so every
// process-output event is broadcast before the single
// process-completed event, then drops the handle.
func (e *Executor) awaitExit(h *Handle, readers *sync.WaitGroup) {
	readers.Wait()

	code := 0
	if err := h.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				code = 128 + int(ws.Signal())
			}
		} else {
			code = -1
			e.logger.Warn("process wait failed",
				zap.String("process_id", h.ID.String()),
				zap.Error(err),
			)
		}
	}

	h.stdin.Close()
	h.exit = code

	e.logger.Info("process completed",
		zap.String("session_id", e.sessionID),
		zap.String("process_id", h.ID.String()),
		zap.Int("exit_code", code),
	)
	e.emit(types.NewProcessCompletedEvent(e.sessionID, h.ID.String(), code))

	e.mu.Lock()
	delete(e.procs, h.ID.String())
	active := len(e.procs)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordProcessExit(code)
		e.metrics.SetProcessesActive(active)
	}

	// Done closes last: once a waiter wakes, the completion event is
	// already broadcast and the identifier is gone.
	close(h.done)
}

// Get returns the handle for a live process.
func (e *Executor) Get(processID string) (*Handle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.procs[processID]
	if !ok {
		return nil, types.NotFound("process not found: %s", processID)
	}
	return h, nil
}

// List returns the handles of all live processes.
func (e *Executor) List() []*Handle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Handle, 0, len(e.procs))
	for _, h := range e.procs {
		out = append(out, h)
	}
	return out
}

// Count returns the number of live processes.
func (e *Executor) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.procs)
}

// WriteStdin appends raw bytes to the process's stdin.
func (e *Executor) WriteStdin(processID string, data []byte) error {
	h, err := e.Get(processID)
	if err != nil {
		return err
	}
	if err := h.stdin.Write(data); err != nil {
		return types.Internal("stdin write: %v", err)
	}
	return nil
}

// CloseStdin ends the process's input stream.
func (e *Executor) CloseStdin(processID string) error {
	h, err := e.Get(processID)
	if err != nil {
		return err
	}
	h.stdin.Close()
	return nil
}

// Kill interrupts the process group and escalates to SIGKILL if it is
// still alive after the configured grace.
func (e *Executor) Kill(processID string) error {
	h, err := e.Get(processID)
	if err != nil {
		return err
	}

	syscall.Kill(-h.Pid, syscall.SIGINT)
	go func() {
		select {
		case <-h.done:
		case <-time.After(e.cfg.KillGrace):
			syscall.Kill(-h.Pid, syscall.SIGKILL)
		}
	}()

	e.logger.Info("process kill requested",
		zap.String("session_id", e.sessionID),
		zap.String("process_id", processID),
	)
	return nil
}

// KillAll force-kills every live process. Used on session removal;
// completion events still flow through the usual exit path.
func (e *Executor) KillAll() {
	for _, h := range e.List() {
		syscall.Kill(-h.Pid, syscall.SIGKILL)
	}
}

func (e *Executor) emit(ev types.Event) {
	if e.bus != nil {
		e.bus.Broadcast(ev)
	}
}

// resolveCwd places the working directory inside the session root,
// creating it when absent.
func (e *Executor) resolveCwd(cwd string) (string, error) {
	if cwd == "" {
		return e.root, nil
	}
	disk, _, err := paths.Resolve(e.root, cwd)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(disk, 0o755); err != nil {
		return "", types.SpawnFailure("create working directory %s: %v", cwd, err)
	}
	return disk, nil
}
