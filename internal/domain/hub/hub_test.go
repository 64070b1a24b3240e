package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

func TestBroadcastReachesAllSessionConnections(t *testing.T) {
	h := New(nil, nil)

	a := h.Attach("sess_a")
	b := h.Attach("sess_a")
	defer a.Close()
	defer b.Close()

	ev := types.NewFileChangeEvent("sess_a", "/index.html")
	h.Broadcast(ev)

	for _, c := range []*Conn{a, b} {
		select {
		case got := <-c.Events():
			assert.Equal(t, types.EventFileChange, got.Type)
			assert.Equal(t, "/index.html", got.Path)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBroadcastIsolatesSessions(t *testing.T) {
	h := New(nil, nil)

	a := h.Attach("sess_a")
	b := h.Attach("sess_b")
	defer a.Close()
	defer b.Close()

	h.Broadcast(types.NewFileChangeEvent("sess_a", "/main.go"))

	select {
	case got := <-a.Events():
		assert.Equal(t, "sess_a", got.SessionID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-b.Events():
		t.Fatalf("connection on another session received %v", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastDropsWhenQueueFull(t *testing.T) {
	h := NewWithDepth(1, nil, nil)

	c := h.Attach("sess_a")
	defer c.Close()

	h.Broadcast(types.NewFileChangeEvent("sess_a", "/a"))
	h.Broadcast(types.NewFileChangeEvent("sess_a", "/b"))
	h.Broadcast(types.NewFileChangeEvent("sess_a", "/c"))

	assert.Equal(t, uint64(2), h.Dropped())

	got := <-c.Events()
	assert.Equal(t, "/a", got.Path)
}

func TestBroadcastWithoutConnectionsIsNoop(t *testing.T) {
	h := New(nil, nil)
	h.Broadcast(types.NewFileChangeEvent("sess_ghost", "/x"))
	assert.Equal(t, uint64(0), h.Dropped())
}

func TestCloseDetachesConnection(t *testing.T) {
	h := New(nil, nil)

	c := h.Attach("sess_a")
	require.Equal(t, 1, h.ClientCount("sess_a"))

	c.Close()
	assert.Equal(t, 0, h.ClientCount("sess_a"))

	_, open := <-c.Events()
	assert.False(t, open, "events channel should be closed after detach")

	// Idempotent.
	c.Close()
}

func TestClientCountPerSession(t *testing.T) {
	h := New(nil, nil)

	a1 := h.Attach("sess_a")
	a2 := h.Attach("sess_a")
	b1 := h.Attach("sess_b")
	defer a1.Close()
	defer a2.Close()
	defer b1.Close()

	assert.Equal(t, 2, h.ClientCount("sess_a"))
	assert.Equal(t, 1, h.ClientCount("sess_b"))
	assert.Equal(t, 0, h.ClientCount("sess_missing"))
	assert.Equal(t, 3, h.Connections())
}

func TestConcurrentBroadcastAndClose(t *testing.T) {
	h := New(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		c := h.Attach("sess_a")

		wg.Add(2)
		go func(c *Conn) {
			defer wg.Done()
			for range c.Events() {
			}
		}(c)
		go func(c *Conn) {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			c.Close()
		}(c)
	}

	for i := 0; i < 200; i++ {
		h.Broadcast(types.NewRefreshPreviewEvent("sess_a"))
	}
	wg.Wait()

	assert.Equal(t, 0, h.Connections())
}

func TestConnIdentity(t *testing.T) {
	h := New(nil, nil)

	c := h.Attach("sess_a")
	defer c.Close()

	assert.True(t, c.ID().IsValid())
	assert.Equal(t, "sess_a", c.SessionID())
}
