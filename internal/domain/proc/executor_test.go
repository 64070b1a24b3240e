package proc

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

func (s *eventSink) all() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Event(nil), s.events...)
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

func newTestExecutor(t *testing.T) (*Executor, *eventSink) {
	t.Helper()
	sink := &eventSink{}
	cfg := config.Default().Process
	return NewExecutor("sess_test", t.TempDir(), cfg, sink, nil, nil), sink
}

func TestSpawnEchoStreamsAndCompletes(t *testing.T) {
	exec, sink := newTestExecutor(t)

	h, err := exec.Spawn("echo", []string{"hello"}, "")
	require.NoError(t, err)
	require.True(t, h.ID.IsValid())
	require.Greater(t, h.Pid, 0)

	code := h.Wait()
	assert.Equal(t, 0, code)

	outputs := sink.byType(types.EventProcessOutput)
	require.Len(t, outputs, 1)
	assert.Equal(t, "hello\n", outputs[0].Output)
	assert.Equal(t, types.StreamStdout, outputs[0].Stream)
	assert.Equal(t, h.ID.String(), outputs[0].ProcessID)

	completed := sink.byType(types.EventProcessCompleted)
	require.Len(t, completed, 1)
	require.NotNil(t, completed[0].ExitCode)
	assert.Equal(t, 0, *completed[0].ExitCode)
	assert.Equal(t, h.ID.String(), completed[0].ProcessID)

	// Output precedes completion in the broadcast order.
	all := sink.all()
	assert.Equal(t, types.EventProcessCompleted, all[len(all)-1].Type)

	// The handle is gone once completion has been broadcast.
	_, err = exec.Get(h.ID.String())
	assert.True(t, types.IsNotFound(err))
	assert.Equal(t, 0, exec.Count())
}

func TestSpawnReportsNonZeroExit(t *testing.T) {
	exec, sink := newTestExecutor(t)

	h, err := exec.Spawn("sh", []string{"-c", "exit 3"}, "")
	require.NoError(t, err)

	assert.Equal(t, 3, h.Wait())

	completed := sink.byType(types.EventProcessCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 3, *completed[0].ExitCode)
}

func TestSpawnTagsStderr(t *testing.T) {
	exec, sink := newTestExecutor(t)

	h, err := exec.Spawn("sh", []string{"-c", "echo oops 1>&2"}, "")
	require.NoError(t, err)
	h.Wait()

	outputs := sink.byType(types.EventProcessOutput)
	require.NotEmpty(t, outputs)
	assert.Equal(t, types.StreamStderr, outputs[0].Stream)
	assert.Equal(t, "oops\n", outputs[0].Output)
	assert.Equal(t, "oops\n", string(h.Stderr()))
	assert.Empty(t, h.Stdout())
}

func TestSpawnFailureHasNoHandleAndNoEvents(t *testing.T) {
	exec, sink := newTestExecutor(t)

	_, err := exec.Spawn("definitely-not-a-command-9c4f1", nil, "")
	require.Error(t, err)
	assert.Equal(t, types.ErrSpawnFailure, types.CodeOf(err))

	assert.Equal(t, 0, exec.Count())

	// A failed spawn never produces events, completion included.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.all())
}

func TestSpawnEmptyCommand(t *testing.T) {
	exec, _ := newTestExecutor(t)

	_, err := exec.Spawn("", nil, "")
	assert.True(t, types.IsInvalidArgument(err))
}

func TestConcurrentSpawnsKeepOutputsApart(t *testing.T) {
	exec, sink := newTestExecutor(t)

	a, err := exec.Spawn("sh", []string{"-c", "echo alpha"}, "")
	require.NoError(t, err)
	b, err := exec.Spawn("sh", []string{"-c", "echo beta"}, "")
	require.NoError(t, err)

	require.NotEqual(t, a.ID, b.ID)
	a.Wait()
	b.Wait()

	for _, ev := range sink.byType(types.EventProcessOutput) {
		switch ev.ProcessID {
		case a.ID.String():
			assert.Equal(t, "alpha\n", ev.Output)
		case b.ID.String():
			assert.Equal(t, "beta\n", ev.Output)
		default:
			t.Fatalf("output tagged with unknown process %q", ev.ProcessID)
		}
	}
	assert.Len(t, sink.byType(types.EventProcessCompleted), 2)
}

func TestWriteStdinFeedsProcess(t *testing.T) {
	exec, sink := newTestExecutor(t)

	h, err := exec.Spawn("cat", nil, "")
	require.NoError(t, err)

	require.NoError(t, exec.WriteStdin(h.ID.String(), []byte("hello stdin\n")))
	require.NoError(t, exec.CloseStdin(h.ID.String()))

	assert.Equal(t, 0, h.Wait())

	outputs := sink.byType(types.EventProcessOutput)
	require.Len(t, outputs, 1)
	assert.Equal(t, "hello stdin\n", outputs[0].Output)
}

func TestStdinUnknownProcess(t *testing.T) {
	exec, _ := newTestExecutor(t)

	err := exec.WriteStdin("proc_nope", []byte("x"))
	assert.True(t, types.IsNotFound(err))

	err = exec.CloseStdin("proc_nope")
	assert.True(t, types.IsNotFound(err))
}

func TestStdinAfterCompletion(t *testing.T) {
	exec, _ := newTestExecutor(t)

	h, err := exec.Spawn("true", nil, "")
	require.NoError(t, err)
	h.Wait()

	err = exec.WriteStdin(h.ID.String(), []byte("late"))
	assert.True(t, types.IsNotFound(err))
}

func TestKillInterruptsProcess(t *testing.T) {
	exec, sink := newTestExecutor(t)

	h, err := exec.Spawn("sleep", []string{"30"}, "")
	require.NoError(t, err)

	require.NoError(t, exec.Kill(h.ID.String()))

	done := make(chan int, 1)
	go func() { done <- h.Wait() }()

	select {
	case code := <-done:
		// SIGINT maps to 130.
		assert.Equal(t, 130, code)
	case <-time.After(5 * time.Second):
		t.Fatal("killed process did not complete")
	}

	completed := sink.byType(types.EventProcessCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 130, *completed[0].ExitCode)

	err = exec.Kill(h.ID.String())
	assert.True(t, types.IsNotFound(err))
}

func TestSpawnCwdResolution(t *testing.T) {
	exec, sink := newTestExecutor(t)

	h, err := exec.Spawn("pwd", nil, "work/sub")
	require.NoError(t, err)
	h.Wait()

	outputs := sink.byType(types.EventProcessOutput)
	require.Len(t, outputs, 1)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(outputs[0].Output), "/work/sub"))

	_, err = exec.Spawn("pwd", nil, "../outside")
	assert.True(t, types.IsInvalidArgument(err))
}

func TestOutputTailIsBounded(t *testing.T) {
	sink := &eventSink{}
	cfg := config.Default().Process
	cfg.OutputBufferBytes = 16
	exec := NewExecutor("sess_test", t.TempDir(), cfg, sink, nil, nil)

	h, err := exec.Spawn("sh", []string{"-c", "printf '0123456789abcdefghij'"}, "")
	require.NoError(t, err)
	h.Wait()

	tail := string(h.Stdout())
	assert.Len(t, tail, 16)
	assert.Equal(t, "456789abcdefghij", tail)
}

func TestListAndCount(t *testing.T) {
	exec, _ := newTestExecutor(t)

	h, err := exec.Spawn("cat", nil, "")
	require.NoError(t, err)

	assert.Equal(t, 1, exec.Count())
	handles := exec.List()
	require.Len(t, handles, 1)
	assert.Equal(t, h.ID, handles[0].ID)

	require.NoError(t, exec.CloseStdin(h.ID.String()))
	h.Wait()
	assert.Equal(t, 0, exec.Count())
}

func TestKillAllReapsEverything(t *testing.T) {
	exec, _ := newTestExecutor(t)

	a, err := exec.Spawn("sleep", []string{"30"}, "")
	require.NoError(t, err)
	b, err := exec.Spawn("sleep", []string{"30"}, "")
	require.NoError(t, err)

	exec.KillAll()

	waitBoth := make(chan struct{})
	go func() {
		a.Wait()
		b.Wait()
		close(waitBoth)
	}()

	select {
	case <-waitBoth:
	case <-time.After(5 * time.Second):
		t.Fatal("processes survived KillAll")
	}
	assert.Equal(t, 0, exec.Count())
}
