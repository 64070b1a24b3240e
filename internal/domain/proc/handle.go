package proc

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/CodeYard/DevSession/backend/internal/shared/id"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Handle is one spawned child process. It is registered in the
// executor's process set from a successful start until the
// process-completed broadcast, after which the identifier is gone and
// stdin/kill requests for it fail with not_found.
type Handle struct {
	ID        id.ProcessID
	Pid       int
	Command   string
	StartedAt time.Time

	cmd    *exec.Cmd
	stdin  *stdinPipe
	stdout *tail
	stderr *tail
	done   chan struct{}
	exit   int
}

// Done is closed after the exit broadcast. ExitCode is valid once Done
// is closed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitCode returns the recorded exit code. Only meaningful after Done.
func (h *Handle) ExitCode() int { return h.exit }

// Wait blocks until the process has completed and returns its exit code.
func (h *Handle) Wait() int {
	<-h.done
	return h.exit
}

// Stdout returns the retained tail of the process's stdout.
func (h *Handle) Stdout() []byte { return h.stdout.Bytes() }

// Stderr returns the retained tail of the process's stderr.
func (h *Handle) Stderr() []byte { return h.stderr.Bytes() }

func (h *Handle) tailFor(stream types.Stream) *tail {
	if stream == types.StreamStderr {
		return h.stderr
	}
	return h.stdout
}

// stdinPipe serializes writes to the child's stdin and makes Close
// idempotent, so the exit path and callers cannot race each other.
type stdinPipe struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

func (p *stdinPipe) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("stdin closed")
	}
	_, err := p.w.Write(data)
	return err
}

func (p *stdinPipe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.w.Close()
		p.closed = true
	}
}

// tail retains the most recent output of one stream, bounded by limit
// bytes, for clients that attach after a process started talking.
type tail struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newTail(limit int) *tail {
	if limit < 1 {
		limit = 1
	}
	return &tail{limit: limit}
}

func (t *tail) append(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		// Reallocate so the backing array does not grow without bound.
		trimmed := make([]byte, t.limit)
		copy(trimmed, t.buf[len(t.buf)-t.limit:])
		t.buf = trimmed
	}
}

func (t *tail) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.buf...)
}
