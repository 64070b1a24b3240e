package http

import (
	"errors"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/domain/session"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/config"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/logging"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/monitoring"
	"github.com/CodeYard/DevSession/backend/internal/shared/id"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

const (
	serviceName    = "devsession-backend"
	serviceVersion = "0.3.0"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	registry *session.Registry
	cfg      *config.Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	started  time.Time
}

// NewHandlers creates the handler set over the session registry.
func NewHandlers(registry *session.Registry, cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		started:  time.Now(),
	}
}

// fail renders err through the code-to-status mapping.
func fail(c *gin.Context, err error) {
	c.JSON(types.CodeOf(err).HTTPStatus(), gin.H{"error": types.Body(err)})
}

// bindJSON decodes the body, reporting malformed input as an
// invalid-argument failure.
func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		fail(c, types.InvalidArgument("invalid request body: %v", err))
		return false
	}
	return true
}

// sessionFor resolves the :id parameter, creating the session on
// demand. Referencing a session is what brings it into being.
func (h *Handlers) sessionFor(c *gin.Context) (*session.Session, bool) {
	sess, err := h.registry.GetOrCreate(c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return sess, true
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// Health handles the liveness check with registry stats.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"uptimeSeconds": int64(time.Since(h.started).Seconds()),
		"registry":      h.registry.Stats(),
	})
}

// Stats handles the JSON metrics snapshot.
func (h *Handlers) Stats(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusOK, gin.H{"registry": h.registry.Stats()})
		return
	}
	snap := h.metrics.GetSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"totalRequests":         snap.TotalRequests,
		"totalErrors":           snap.TotalErrors,
		"activeSessions":        snap.ActiveSessions,
		"activeConnections":     snap.ActiveConnections,
		"activeProcesses":       snap.ActiveProcesses,
		"eventsBroadcast":       snap.EventsBroadcast,
		"eventsDropped":         snap.EventsDropped,
		"averageRequestSeconds": h.metrics.AverageRequestSeconds(),
		"registry":              h.registry.Stats(),
	})
}

// CreateSession establishes (or re-joins) a session. The identifier is
// minted server-side when the caller does not bring one.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req types.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, types.InvalidArgument("invalid request body: %v", err))
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = id.NewSessionID().String()
	}

	sess, err := h.registry.GetOrCreate(sessionID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

// ListSessions lists all live sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.registry.List()
	infos := make([]types.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": infos,
		"stats":    h.registry.Stats(),
	})
}

// GetSession returns one session's bookkeeping view.
func (h *Handlers) GetSession(c *gin.Context) {
	sess, err := h.registry.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

// DeleteSession removes a session. Mirrored files stay on disk unless
// the purge query flag asks otherwise.
func (h *Handlers) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	purge := c.Query("purge") == "true"

	if err := h.registry.Remove(sessionID, purge); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"sessionId": sessionID,
		"purged":    purge,
	})
}

// ExportSession streams the session tree as a tar.gz attachment.
func (h *Handlers) ExportSession(c *gin.Context) {
	sess, err := h.registry.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Type", "application/gzip")
	c.Header("Content-Disposition", `attachment; filename="`+path.Base(sess.ID)+`.tar.gz"`)
	c.Status(http.StatusOK)

	if err := sess.Files.Archive(c.Request.Context(), c.Writer); err != nil {
		// Headers are gone; all that is left is to log the truncation.
		h.logger.Error("archive stream failed",
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}
}
