package session

import (
	"strings"
	"sync"
	"time"

	"github.com/CodeYard/DevSession/backend/internal/domain/files"
	"github.com/CodeYard/DevSession/backend/internal/domain/hub"
	"github.com/CodeYard/DevSession/backend/internal/domain/proc"
	"github.com/CodeYard/DevSession/backend/internal/domain/term"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Session is one isolated workspace: a directory on disk, its file
// store, its processes and terminals, and the clients subscribed to
// its events. Exactly one Session exists per identifier at a time.
type Session struct {
	ID        string
	Root      string
	CreatedAt time.Time

	Files *files.Store
	Procs *proc.Executor
	Terms *term.Manager

	hub        *hub.Hub
	previewURL string
	readyDelay time.Duration

	mu           sync.Mutex
	removal      *time.Timer
	previewOnce  sync.Once
	previewTimer *time.Timer
}

// Spawn starts a command through the session's executor. The first
// successful spawn also arms the preview-ready announcement: after the
// configured delay the session broadcasts preview-ready with its
// preview address. Readiness is assumed on schedule, never probed.
func (s *Session) Spawn(command string, args []string, cwd string) (*proc.Handle, error) {
	h, err := s.Procs.Spawn(command, args, cwd)
	if err != nil {
		return nil, err
	}

	s.previewOnce.Do(func() {
		s.mu.Lock()
		s.previewTimer = time.AfterFunc(s.readyDelay, func() {
			s.hub.Broadcast(types.NewPreviewReadyEvent(s.ID, s.previewURL))
		})
		s.mu.Unlock()
	})

	return h, nil
}

// PreviewURL returns the address the session's mirrored content is
// served from.
func (s *Session) PreviewURL() string { return s.previewURL }

// Clients returns the number of connections subscribed to the session.
func (s *Session) Clients() int { return s.hub.ClientCount(s.ID) }

// Info returns the bookkeeping view of the session.
func (s *Session) Info() types.SessionInfo {
	procIDs := []string{}
	for _, h := range s.Procs.List() {
		procIDs = append(procIDs, h.ID.String())
	}
	return types.SessionInfo{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		Clients:    s.Clients(),
		Processes:  procIDs,
		Terminals:  s.Terms.List(),
		PreviewURL: s.previewURL,
	}
}

// cancelRemoval stops a pending grace-period removal, if any. Reports
// whether one was pending.
func (s *Session) cancelRemoval() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removal == nil {
		return false
	}
	s.removal.Stop()
	s.removal = nil
	return true
}

// scheduleRemoval arms (or re-arms) the grace-period removal timer.
// Repeated calls reset the window rather than stacking timers.
func (s *Session) scheduleRemoval(grace time.Duration, reap func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removal != nil {
		s.removal.Stop()
	}
	s.removal = time.AfterFunc(grace, reap)
}

// stopTimers halts any pending timers on removal.
func (s *Session) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removal != nil {
		s.removal.Stop()
		s.removal = nil
	}
	if s.previewTimer != nil {
		s.previewTimer.Stop()
		s.previewTimer = nil
	}
}

// previewAddress builds the session's preview URL. With no configured
// base the address is host-relative, letting clients resolve it
// against whatever host they reached the backend on.
func previewAddress(base, sessionID string) string {
	return strings.TrimSuffix(base, "/") + "/preview/" + sessionID + "/"
}

// ValidateID rejects session identifiers that could name anything
// outside their own workspace directory. An identifier is one opaque
// path segment: no separators, no traversal tokens. The browser mints
// its own ids, so everything else is accepted.
func ValidateID(sessionID string) error {
	if sessionID == "" {
		return types.InvalidArgument("session id is required")
	}
	if strings.ContainsAny(sessionID, `/\`) {
		return types.InvalidArgument("session id must not contain path separators: %s", sessionID)
	}
	if sessionID == "." || sessionID == ".." {
		return types.InvalidArgument("session id must not traverse: %s", sessionID)
	}
	return nil
}
