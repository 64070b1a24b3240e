package session

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/domain/files"
	"github.com/CodeYard/DevSession/backend/internal/domain/hub"
	"github.com/CodeYard/DevSession/backend/internal/domain/proc"
	"github.com/CodeYard/DevSession/backend/internal/domain/term"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/config"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/logging"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/monitoring"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Registry owns every live session. Get-or-create is atomic per
// identifier, and a session whose last client disconnected survives
// for the grace period before being reaped; a reconnect inside the
// window cancels the pending removal.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	hub      *hub.Hub
	cfg      *config.Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// NewRegistry creates an empty registry broadcasting through h.
func NewRegistry(cfg *config.Config, h *hub.Hub, logger *logging.Logger, metrics *monitoring.Metrics) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		hub:      h,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Hub returns the registry's event hub.
func (r *Registry) Hub() *hub.Hub { return r.hub }

// GetOrCreate returns the session for sessionID, creating it (backing
// directory included) when it does not exist yet.
func (r *Registry) GetOrCreate(sessionID string) (*Session, error) {
	if err := ValidateID(sessionID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(sessionID)
}

func (r *Registry) getOrCreateLocked(sessionID string) (*Session, error) {
	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}

	root := filepath.Join(r.cfg.Workspace.Root, sessionID)
	store, err := files.NewStore(sessionID, root, r.hub, r.logger.Named("files"), r.metrics)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:         sessionID,
		Root:       store.Root(),
		CreatedAt:  time.Now(),
		Files:      store,
		Procs:      proc.NewExecutor(sessionID, store.Root(), r.cfg.Process, r.hub, r.logger.Named("proc"), r.metrics),
		Terms:      term.NewManager(sessionID, store.Root(), r.cfg.Process, r.hub, r.logger.Named("term"), r.metrics),
		hub:        r.hub,
		previewURL: previewAddress(r.cfg.Preview.BaseURL, sessionID),
		readyDelay: r.cfg.Preview.ReadyDelay,
	}
	r.sessions[sessionID] = s

	if r.metrics != nil {
		r.metrics.IncSessionsCreated()
		r.metrics.SetSessionsActive(len(r.sessions))
	}
	r.logger.Info("session created",
		zap.String("session_id", sessionID),
		zap.String("root", s.Root),
	)
	return s, nil
}

// Get returns an existing session or not_found.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, types.NotFound("session not found: %s", sessionID)
	}
	return s, nil
}

// Connect attaches a new client connection to the session, creating
// the session if needed. Attaching inside the grace window cancels the
// pending removal.
func (r *Registry) Connect(sessionID string) (*Session, *hub.Conn, error) {
	if err := ValidateID(sessionID); err != nil {
		return nil, nil, err
	}

	// Attach under the registry lock so a concurrent grace-period reap
	// cannot slip between the lookup and the subscription.
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getOrCreateLocked(sessionID)
	if err != nil {
		return nil, nil, err
	}

	conn := r.hub.Attach(sessionID)
	if s.cancelRemoval() {
		if r.metrics != nil {
			r.metrics.IncSessionsReclaimed()
		}
		r.logger.Info("session reclaimed within grace period",
			zap.String("session_id", sessionID),
		)
	}
	return s, conn, nil
}

// Disconnect detaches a client connection. When the session's client
// set empties, removal is scheduled after the grace period; repeated
// disconnects reset the window rather than stacking timers.
func (r *Registry) Disconnect(conn *hub.Conn) {
	sessionID := conn.SessionID()
	conn.Close()

	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	if r.hub.ClientCount(sessionID) > 0 {
		return
	}

	grace := r.cfg.Session.GracePeriod
	s.scheduleRemoval(grace, func() { r.reap(sessionID) })
	r.logger.Info("session removal scheduled",
		zap.String("session_id", sessionID),
		zap.Duration("grace_period", grace),
	)
}

// reap removes the session if its client set is still empty when the
// grace timer fires.
func (r *Registry) reap(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	if r.hub.ClientCount(sessionID) > 0 {
		// A client connected as the timer fired; the session stays.
		return
	}
	r.removeLocked(s, false, "grace period expired")
}

// Remove deletes the session's bookkeeping and kills its terminals.
// Spawned processes run to completion regardless; their lifetime is
// bounded by the process, not the session. Mirrored files stay on disk
// unless purge is set.
func (r *Registry) Remove(sessionID string, purge bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return types.NotFound("session not found: %s", sessionID)
	}
	r.removeLocked(s, purge, "removed")
	return nil
}

func (r *Registry) removeLocked(s *Session, purge bool, reason string) {
	delete(r.sessions, s.ID)
	s.stopTimers()
	s.Terms.CloseAll()

	if purge {
		if err := os.RemoveAll(s.Root); err != nil {
			r.logger.Warn("failed to purge session root",
				zap.String("session_id", s.ID),
				zap.Error(err),
			)
		}
	}

	if r.metrics != nil {
		r.metrics.IncSessionsRemoved()
		r.metrics.SetSessionsActive(len(r.sessions))
	}
	r.logger.Info("session removed",
		zap.String("session_id", s.ID),
		zap.String("reason", reason),
		zap.Bool("purged", purge),
	)
}

// List returns all live sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Stats summarizes the registry for health reporting.
func (r *Registry) Stats() types.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := types.RegistryStats{
		Sessions:    len(r.sessions),
		Connections: r.hub.Connections(),
	}
	for _, s := range r.sessions {
		stats.Processes += s.Procs.Count()
		stats.Terminals += s.Terms.Count()
	}
	return stats
}

// Shutdown reaps every session's terminals and processes. Only the
// server's exit path calls this; ordinary session removal leaves
// spawned processes alone.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		s.stopTimers()
		s.Terms.CloseAll()
		s.Procs.KillAll()
	}
	r.sessions = make(map[string]*Session)
	if r.metrics != nil {
		r.metrics.SetSessionsActive(0)
	}
	r.logger.Info("registry shut down")
}
