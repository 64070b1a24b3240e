package client

import (
	"context"
	"encoding/base64"
	"sync/atomic"

	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// outputDepth is the per-process chunk buffer. A consumer that falls
// further behind loses chunks rather than stalling the event loop;
// Dropped counts the losses.
const outputDepth = 1024

// Chunk is one piece of process output in arrival order.
type Chunk struct {
	Data   string
	Stream types.Stream
}

// Process is a consumable view of one spawned child. Output yields
// chunks until the process completes, then closes; Wait resolves the
// exit code. A non-zero exit is a result, not an error.
type Process struct {
	id  string
	pid int

	out     chan Chunk
	done    chan struct{}
	exit    int
	err     error
	dropped atomic.Uint64
}

func newProcess(id string, pid int) *Process {
	return &Process{
		id:   id,
		pid:  pid,
		out:  make(chan Chunk, outputDepth),
		done: make(chan struct{}),
	}
}

// ID returns the process identifier used by SendStdin and Kill.
func (p *Process) ID() string { return p.id }

// Pid returns the OS process id on the backend host.
func (p *Process) Pid() int { return p.pid }

// Output returns the stream of stdout/stderr chunks. The channel closes
// once the process completes or the event channel drops.
func (p *Process) Output() <-chan Chunk { return p.out }

// Dropped reports chunks lost to a slow consumer.
func (p *Process) Dropped() uint64 { return p.dropped.Load() }

// Wait blocks until the process completes and returns its exit code.
// The error is non-nil only when the event channel dropped before
// completion; the exit code is meaningless in that case.
func (p *Process) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-p.done:
		return p.exit, p.err
	}
}

// Spawn starts command in the session and returns its output stream.
// Failure to start (command not found, bad cwd) is an error; once
// started, the process's fate arrives through Output and Wait.
func (c *Client) Spawn(ctx context.Context, command string, args []string, cwd string) (*Process, error) {
	// Output can outrun the spawn response: the backend streams chunks
	// onto the event channel as soon as the child writes, while the
	// response naming the process is still in flight. Buffer events for
	// unknown processes while a spawn is pending, then drain the buffer
	// into the stream once the response claims its id.
	c.procMu.Lock()
	c.pending++
	c.procMu.Unlock()
	defer func() {
		c.procMu.Lock()
		c.pending--
		if c.pending == 0 && len(c.orphans) > 0 {
			c.orphans = make(map[string][]types.Event)
		}
		c.procMu.Unlock()
	}()

	var out types.SpawnResponse
	err := c.post(ctx, "/sessions/"+c.sessionID+"/spawn", types.SpawnRequest{
		Command: command,
		Args:    args,
		Cwd:     cwd,
	}, &out)
	if err != nil {
		return nil, err
	}

	p := newProcess(out.ProcessID, out.Pid)

	c.procMu.Lock()
	finished := false
	for _, ev := range c.orphans[out.ProcessID] {
		c.feed(p, ev)
		if ev.Type == types.EventProcessCompleted {
			finished = true
		}
	}
	delete(c.orphans, out.ProcessID)
	if !finished {
		c.procs[out.ProcessID] = p
	}
	c.procMu.Unlock()

	return p, nil
}

// SendStdin writes raw bytes to the process's standard input.
func (c *Client) SendStdin(ctx context.Context, processID string, data []byte) error {
	return c.post(ctx, "/sessions/"+c.sessionID+"/processes/"+processID+"/stdin", types.StdinRequest{
		Data: base64.StdEncoding.EncodeToString(data),
	}, nil)
}

// CloseStdin signals end-of-input to the process.
func (c *Client) CloseStdin(ctx context.Context, processID string) error {
	return c.post(ctx, "/sessions/"+c.sessionID+"/processes/"+processID+"/stdin", types.StdinRequest{
		Eof: true,
	}, nil)
}

// Kill interrupts the process, escalating to SIGKILL after the
// server's grace window.
func (c *Client) Kill(ctx context.Context, processID string) error {
	return c.post(ctx, "/sessions/"+c.sessionID+"/processes/"+processID+"/kill", nil, nil)
}

// routeToProcess feeds process events into their stream. Events for a
// process nothing claimed yet are buffered only while a spawn is in
// flight; otherwise they belong to another client of the session.
func (c *Client) routeToProcess(ev types.Event) {
	if ev.Type != types.EventProcessOutput && ev.Type != types.EventProcessCompleted {
		return
	}

	c.procMu.Lock()
	defer c.procMu.Unlock()

	p, ok := c.procs[ev.ProcessID]
	if !ok {
		if c.pending > 0 {
			c.orphans[ev.ProcessID] = append(c.orphans[ev.ProcessID], ev)
		}
		return
	}
	c.feed(p, ev)
	if ev.Type == types.EventProcessCompleted {
		delete(c.procs, ev.ProcessID)
	}
}

// feed applies one routed event to a stream. Callers hold procMu, which
// is what keeps sends ordered against the close in failLiveProcesses;
// the channel send never blocks, so holding the lock is safe.
func (c *Client) feed(p *Process, ev types.Event) {
	switch ev.Type {
	case types.EventProcessOutput:
		select {
		case p.out <- Chunk{Data: ev.Output, Stream: ev.Stream}:
		default:
			p.dropped.Add(1)
		}
	case types.EventProcessCompleted:
		if ev.ExitCode != nil {
			p.exit = *ev.ExitCode
		}
		close(p.out)
		close(p.done)
	}
}

// failLiveProcesses resolves every unfinished stream with err after the
// event channel is gone.
func (c *Client) failLiveProcesses(err error) {
	c.procMu.Lock()
	defer c.procMu.Unlock()

	for _, p := range c.procs {
		p.err = err
		close(p.out)
		close(p.done)
	}
	c.procs = make(map[string]*Process)
	c.orphans = make(map[string][]types.Event)
}
