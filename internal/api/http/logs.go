package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/tracing"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// EditorLogEntry is one log line forwarded from the browser editor.
type EditorLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp int64                  `json:"timestamp,omitempty"`
}

// EditorLogBatch is a batch of forwarded editor logs.
type EditorLogBatch struct {
	Source  string           `json:"source"`
	Entries []EditorLogEntry `json:"entries"`
}

// IngestLogs folds editor-side logs into the backend's structured log
// stream, so a browser failure and its server-side cause land in the
// same place.
func (h *Handlers) IngestLogs(c *gin.Context) {
	var batch EditorLogBatch
	if !bindJSON(c, &batch) {
		return
	}
	if batch.Source != "editor" {
		fail(c, types.InvalidArgument("unknown log source: %q", batch.Source))
		return
	}
	if len(batch.Entries) == 0 {
		fail(c, types.InvalidArgument("log batch is empty"))
		return
	}

	// Entries relayed under one request share its trace, tying the
	// browser-side batch to whatever the backend logged for it.
	logger := h.logger.Named("editor").Logger
	if tid := tracing.GetTraceID(c.Request.Context()); tid != "" {
		logger = logger.With(zap.String("trace_id", string(tid)))
	}
	for _, entry := range batch.Entries {
		h.relayEntry(logger, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"received":  len(batch.Entries),
		"timestamp": time.Now().Unix(),
	})
}

// relayEntry re-logs one forwarded entry at its original severity.
func (h *Handlers) relayEntry(logger *zap.Logger, entry EditorLogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+2)
	fields = append(fields, zap.String("source", "editor"))
	if entry.Timestamp != 0 {
		fields = append(fields, zap.Int64("editor_ts", entry.Timestamp))
	}
	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn":
		logger.Warn(entry.Message, fields...)
	case "debug":
		logger.Debug(entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
}
