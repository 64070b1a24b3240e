package http

import "github.com/gin-gonic/gin"

// Routes mounts the request/response API on r. The WebSocket endpoint
// is mounted separately by the server so this table stays usable from
// handler-level tests.
func (h *Handlers) Routes(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	r.POST("/logs", h.IngestLogs)

	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/:id", h.GetSession)
	r.DELETE("/sessions/:id", h.DeleteSession)
	r.GET("/sessions/:id/export", h.ExportSession)

	files := r.Group("/sessions/:id/files")
	files.POST("/read", h.ReadFile)
	files.POST("/write", h.WriteFile)
	files.POST("/mkdir", h.Mkdir)
	files.POST("/list", h.ListDir)
	files.POST("/remove", h.RemoveFile)
	files.POST("/stat", h.StatFile)
	files.POST("/find", h.FindFiles)

	r.POST("/sessions/:id/spawn", h.Spawn)
	r.POST("/sessions/:id/processes/:pid/stdin", h.Stdin)
	r.POST("/sessions/:id/processes/:pid/kill", h.Kill)

	r.GET("/preview/:id/*path", h.Preview)
}
