package hub

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/logging"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/monitoring"
	"github.com/CodeYard/DevSession/backend/internal/shared/id"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// DefaultDepth is the buffered capacity of each connection's event queue.
// A connection that falls this far behind starts losing events.
const DefaultDepth = 256

// Hub fans events out to every connection attached to a session.
// Delivery is fire-and-forget: a connection whose queue is full is
// skipped, never waited on, so one slow client cannot stall a producer.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Conn]struct{}
	depth    int
	dropped  atomic.Uint64
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// Conn is one attached connection's view of the hub. Events arrive on
// the channel returned by Events until Close detaches the connection.
type Conn struct {
	id        id.ConnID
	sessionID string
	ch        chan types.Event
	hub       *Hub
	once      sync.Once
}

// New creates a hub with the default per-connection queue depth.
func New(logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	return NewWithDepth(DefaultDepth, logger, metrics)
}

// NewWithDepth creates a hub with a custom queue depth. Used by tests
// to force drop behavior with small queues.
func NewWithDepth(depth int, logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	if depth < 1 {
		depth = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		sessions: make(map[string]map[*Conn]struct{}),
		depth:    depth,
		logger:   logger,
		metrics:  metrics,
	}
}

// Attach registers a new connection under sessionID and returns it.
func (h *Hub) Attach(sessionID string) *Conn {
	c := &Conn{
		id:        id.NewConnID(),
		sessionID: sessionID,
		ch:        make(chan types.Event, h.depth),
		hub:       h,
	}

	h.mu.Lock()
	conns, ok := h.sessions[sessionID]
	if !ok {
		conns = make(map[*Conn]struct{})
		h.sessions[sessionID] = conns
	}
	conns[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("connection attached",
		zap.String("conn_id", c.id.String()),
		zap.String("session_id", sessionID),
	)
	return c
}

// ID returns the connection identifier.
func (c *Conn) ID() id.ConnID { return c.id }

// SessionID returns the session this connection is attached to.
func (c *Conn) SessionID() string { return c.sessionID }

// Events returns the connection's delivery channel. It is closed when
// the connection detaches.
func (c *Conn) Events() <-chan types.Event { return c.ch }

// Close detaches the connection and closes its delivery channel.
// Safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		h := c.hub
		h.mu.Lock()
		if conns, ok := h.sessions[c.sessionID]; ok {
			delete(conns, c)
			if len(conns) == 0 {
				delete(h.sessions, c.sessionID)
			}
		}
		// Broadcast sends hold the read lock, so closing under the
		// write lock cannot race a send.
		close(c.ch)
		h.mu.Unlock()

		h.logger.Debug("connection detached",
			zap.String("conn_id", c.id.String()),
			zap.String("session_id", c.sessionID),
		)
	})
}

// Broadcast delivers ev to every connection attached to its session.
// Connections with full queues are skipped and counted, not retried.
func (h *Hub) Broadcast(ev types.Event) {
	h.mu.RLock()
	for c := range h.sessions[ev.SessionID] {
		select {
		case c.ch <- ev:
		default:
			h.dropped.Add(1)
			if h.metrics != nil {
				h.metrics.RecordEventDropped()
			}
			h.logger.Warn("event dropped on slow connection",
				zap.String("conn_id", c.id.String()),
				zap.String("session_id", ev.SessionID),
				zap.String("type", string(ev.Type)),
			)
		}
	}
	h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.RecordEventBroadcast(string(ev.Type))
	}
}

// ClientCount returns the number of connections attached to a session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Connections returns the total number of attached connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.sessions {
		total += len(conns)
	}
	return total
}

// Dropped returns the number of deliveries skipped since start.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
