// Package paths normalizes and confines client-supplied paths.
//
// Every path reaching the backend is interpreted relative to a session
// root. These helpers produce the canonical session form ("/src/app.js")
// and the on-disk location, rejecting traversal that would climb out of
// the root instead of silently reanchoring it.
package paths

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Normalize converts p to cleaned, slash-separated, root-anchored form.
// "src/main.go" and "/src/main.go" both become "/src/main.go"; the
// empty path and "." become "/". Traversal that would escape the root
// is an invalid_argument error.
func Normalize(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	depth := 0
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return "", types.InvalidArgument("path escapes the session root: %s", p)
			}
		default:
			depth++
		}
	}
	return path.Clean("/" + p), nil
}

// Resolve returns the on-disk location of p under root alongside its
// normalized session form. root must be absolute and cleaned.
func Resolve(root, p string) (string, string, error) {
	norm, err := Normalize(p)
	if err != nil {
		return "", "", err
	}
	disk := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(norm, "/")))
	if disk != root && !strings.HasPrefix(disk, root+string(os.PathSeparator)) {
		return "", "", types.InvalidArgument("path escapes the session root: %s", p)
	}
	return disk, norm, nil
}

// Join appends a child name to a normalized session path.
func Join(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
