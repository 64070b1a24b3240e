package http

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Spawn starts one child process inside the session. A successful
// start is a 200 regardless of how the process later exits; failures
// to start map through the spawn_failure code.
func (h *Handlers) Spawn(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}
	var req types.SpawnRequest
	if !bindJSON(c, &req) {
		return
	}

	handle, err := sess.Spawn(req.Command, req.Args, req.Cwd)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SpawnResponse{
		ProcessID: handle.ID.String(),
		Pid:       handle.Pid,
	})
}

// Stdin feeds base64 bytes to a running process, optionally closing
// the pipe afterwards.
func (h *Handlers) Stdin(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}
	processID := c.Param("pid")

	var req types.StdinRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Data == "" && !req.Eof {
		fail(c, types.InvalidArgument("stdin requires data or eof"))
		return
	}

	if req.Data != "" {
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			fail(c, types.InvalidArgument("stdin data is not valid base64: %v", err))
			return
		}
		if err := sess.Procs.WriteStdin(processID, data); err != nil {
			fail(c, err)
			return
		}
	}
	if req.Eof {
		if err := sess.Procs.CloseStdin(processID); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "processId": processID})
}

// Kill interrupts a process, escalating to SIGKILL after the grace
// window.
func (h *Handlers) Kill(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}
	processID := c.Param("pid")

	if err := sess.Procs.Kill(processID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "processId": processID})
}
