package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// ReadFile returns one file's content.
func (h *Handlers) ReadFile(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}
	var req types.FileReadRequest
	if !bindJSON(c, &req) {
		return
	}

	content, err := sess.Files.Read(c.Request.Context(), req.Path)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types.FileReadResponse{Path: req.Path, Content: string(content)})
}

// WriteFile writes content to a path, creating parent directories.
func (h *Handlers) WriteFile(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}
	var req types.FileWriteRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := sess.Files.Write(c.Request.Context(), req.Path, []byte(req.Content)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "path": req.Path})
}

// Mkdir creates a directory, with parents when recursive.
func (h *Handlers) Mkdir(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}
	var req types.MkdirRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := sess.Files.Mkdir(c.Request.Context(), req.Path, req.Recursive); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "path": req.Path})
}

// ListDir lists directory entries, optionally typed.
func (h *Handlers) ListDir(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}
	var req types.FileListRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Path == "" {
		req.Path = "/"
	}

	names, entries, err := sess.Files.List(c.Request.Context(), req.Path, req.WithTypes)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types.FileListResponse{Path: req.Path, Names: names, Entries: entries})
}

// RemoveFile deletes a file, or a subtree when recursive.
func (h *Handlers) RemoveFile(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}
	var req types.FileRemoveRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := sess.Files.Remove(c.Request.Context(), req.Path, req.Recursive); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "path": req.Path})
}

// StatFile fetches entry metadata with a sniffed content type.
func (h *Handlers) StatFile(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}
	var req types.FileStatRequest
	if !bindJSON(c, &req) {
		return
	}

	info, err := sess.Files.Stat(c.Request.Context(), req.Path)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// FindFiles globs the session tree.
func (h *Handlers) FindFiles(c *gin.Context) {
	sess, ok := h.sessionFor(c)
	if !ok {
		return
	}
	var req types.FileFindRequest
	if !bindJSON(c, &req) {
		return
	}

	matches, err := sess.Files.Find(c.Request.Context(), req.Pattern)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types.FileFindResponse{Pattern: req.Pattern, Matches: matches})
}
