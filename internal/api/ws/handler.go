package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/domain/session"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/logging"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/monitoring"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second

	// sendDepth bounds the per-socket outbound queue.
	sendDepth = 256

	// maxMessageBytes bounds inbound frames. File writes ride the
	// socket, so this is sized for source trees, not chat lines.
	maxMessageBytes = 8 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the CORS layer and the fronting proxy
	},
}

// Handler upgrades editor connections and binds each socket to one
// session's event channel.
type Handler struct {
	registry *session.Registry
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates a WebSocket handler over the session registry.
func NewHandler(registry *session.Registry, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

// HandleConnection upgrades the request and runs the connection until
// either side closes. The session is created on demand; its identifier
// comes from the `session` query parameter.
func (h *Handler) HandleConnection(c *gin.Context) {
	sessionID := c.Query("session")
	if err := session.ValidateID(sessionID); err != nil {
		c.JSON(types.CodeOf(err).HTTPStatus(), gin.H{"error": types.Body(err)})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return
	}

	sess, sub, err := h.registry.Connect(sessionID)
	if err != nil {
		h.logger.Error("session attach failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		conn.Close()
		return
	}

	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	h.logger.Info("websocket connected",
		zap.String("session_id", sessionID),
		zap.String("conn_id", sub.ID().String()))

	cl := newClient(h, conn, sess, sub)

	// The channel is established; announce readiness before any other
	// traffic so a prompt subscriber never misses it.
	if data, err := sonic.Marshal(types.NewServerReadyEvent(sessionID)); err == nil {
		cl.send <- data
	}

	go cl.writePump()
	cl.readPump()
}
