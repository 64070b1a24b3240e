package http

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CodeYard/DevSession/backend/internal/domain/session"
	"github.com/CodeYard/DevSession/backend/internal/shared/paths"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Preview serves a session's mirrored files for the editor's preview
// frame. Serving is disk-backed, so content outlives the session's
// bookkeeping until a purge. Directory requests fall back to
// index.html. Missing and escaping paths both answer not-found so the
// response never reveals what exists outside the tree.
func (h *Handlers) Preview(c *gin.Context) {
	sessionID := c.Param("id")
	if err := session.ValidateID(sessionID); err != nil {
		fail(c, err)
		return
	}

	root, err := filepath.Abs(filepath.Join(h.cfg.Workspace.Root, sessionID))
	if err != nil {
		fail(c, types.Internal("resolving workspace root: %v", err))
		return
	}
	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		fail(c, types.NotFound("session %s has no content", sessionID))
		return
	}

	disk, _, err := paths.Resolve(root, c.Param("path"))
	if err != nil {
		fail(c, err)
		return
	}

	target, err := confine(rootReal, disk)
	if err != nil {
		fail(c, err)
		return
	}

	info, err := os.Stat(target)
	if err != nil {
		fail(c, types.NotFound("no content at %s", c.Param("path")))
		return
	}
	if info.IsDir() {
		target, err = confine(rootReal, filepath.Join(target, "index.html"))
		if err != nil {
			fail(c, err)
			return
		}
	}

	c.File(target)
}

// confine resolves symlinks and verifies the result stays under root.
// A mirrored symlink pointing outside the tree must not widen the
// preview surface.
func confine(rootReal, p string) (string, error) {
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", types.NotFound("no content at %s", filepath.Base(p))
	}
	if real != rootReal && !strings.HasPrefix(real, rootReal+string(filepath.Separator)) {
		return "", types.NotFound("no content at %s", filepath.Base(p))
	}
	return real, nil
}
