package client

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Handler consumes one event. Handlers run on the event loop goroutine,
// so they must return quickly; redelivered readiness may arrive on a
// helper goroutine instead.
type Handler func(types.Event)

// Registration identifies one On subscription for later removal.
type Registration struct {
	typ types.EventType
	id  uint64
}

// Readiness redelivery schedule. A server-ready event with no listener
// is retried at fixed intervals, then force-delivered once at the
// fallback mark to whoever has registered by then. Duplicate delivery
// to a late subscriber is acceptable; a silent drop is not.
const (
	readyRetryInterval = 200 * time.Millisecond
	readyRetryAttempts = 5
	readyForcedAfter   = 2 * time.Second
)

// On registers fn for every event of the given type and returns the
// registration Off removes.
func (c *Client) On(eventType types.EventType, fn Handler) *Registration {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()

	c.nextReg++
	id := c.nextReg
	m := c.handlers[eventType]
	if m == nil {
		m = make(map[uint64]Handler)
		c.handlers[eventType] = m
	}
	m[id] = fn
	return &Registration{typ: eventType, id: id}
}

// Off removes a registration. Removing one twice is a no-op.
func (c *Client) Off(reg *Registration) {
	if reg == nil {
		return
	}
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()

	if m := c.handlers[reg.typ]; m != nil {
		delete(m, reg.id)
		if len(m) == 0 {
			delete(c.handlers, reg.typ)
		}
	}
}

// Watch invokes fn for every write under prefix. It rides the
// file-change stream, so it sees writes from every client of the
// session, not just this one.
func (c *Client) Watch(prefix string, fn func(path string)) *Registration {
	p := "/" + strings.Trim(prefix, "/")
	return c.On(types.EventFileChange, func(ev types.Event) {
		if p == "/" || ev.Path == p || strings.HasPrefix(ev.Path, p+"/") {
			fn(ev.Path)
		}
	})
}

// readLoop is the sole reader of the websocket. It decodes frames,
// feeds process streams, and fans events out to registered handlers.
// Control frames ride along: gorilla answers the server's pings while
// ReadMessage is pending.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("event channel dropped", zap.Error(err))
			}
			c.cancel()
			c.failLiveProcesses(types.TransportError("event channel closed before process completion"))
			return
		}

		var ev types.Event
		if err := sonic.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("dropping malformed event frame", zap.Error(err))
			continue
		}
		switch ev.Type {
		case "", "response", "error":
			// Reply envelopes for requests this client never sends.
			continue
		}
		if ev.SessionID != "" && ev.SessionID != c.sessionID {
			continue
		}

		c.routeToProcess(ev)
		c.dispatch(ev)
	}
}

// dispatch delivers ev to every registered handler. A readiness event
// that finds no listener enters the redelivery schedule instead of
// being dropped.
func (c *Client) dispatch(ev types.Event) {
	if c.deliver(ev) {
		return
	}
	if ev.Type == types.EventServerReady {
		go c.redeliverReady(ev)
	}
}

// deliver snapshots the handlers for ev and invokes them outside the
// lock, so a handler may call Off without deadlocking. It reports
// whether anyone was listening.
func (c *Client) deliver(ev types.Event) bool {
	c.handlerMu.RLock()
	m := c.handlers[ev.Type]
	hs := make([]Handler, 0, len(m))
	for _, h := range m {
		hs = append(hs, h)
	}
	c.handlerMu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
	return len(hs) > 0
}

// redeliverReady walks the documented schedule for a readiness event
// that arrived before any listener registered.
func (c *Client) redeliverReady(ev types.Event) {
	for attempt := 0; attempt < readyRetryAttempts; attempt++ {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(readyRetryInterval):
		}
		if c.deliver(ev) {
			return
		}
	}

	remaining := readyForcedAfter - readyRetryAttempts*readyRetryInterval
	select {
	case <-c.ctx.Done():
		return
	case <-time.After(remaining):
	}
	if !c.deliver(ev) {
		c.logger.Warn("server-ready went unobserved past the fallback mark",
			zap.String("session_id", c.sessionID))
	}
}
