package files

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/logging"
	"github.com/CodeYard/DevSession/backend/internal/infrastructure/monitoring"
	"github.com/CodeYard/DevSession/backend/internal/shared/paths"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Broadcaster delivers events to the session's connected clients.
type Broadcaster interface {
	Broadcast(ev types.Event)
}

// Store is a session's file tree: a write-through content cache backed
// by a directory on disk. Reads prefer the cache; every write lands on
// disk before the call returns, so the mirror is always servable (the
// preview handler reads it directly).
type Store struct {
	sessionID string
	root      string
	mu        sync.RWMutex
	cache     map[string][]byte
	bus       Broadcaster
	logger    *logging.Logger
	metrics   *monitoring.Metrics
}

// NewStore creates a store rooted at dir, creating the directory if
// needed. The root is resolved to an absolute path so confinement
// checks cannot be fooled by a relative working directory.
func NewStore(sessionID, dir string, bus Broadcaster, logger *logging.Logger, metrics *monitoring.Metrics) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, types.Internal("resolve root: %v", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, types.Internal("create session root: %v", err)
	}
	return &Store{
		sessionID: sessionID,
		root:      abs,
		cache:     make(map[string][]byte),
		bus:       bus,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Root returns the absolute on-disk root of the session tree.
func (s *Store) Root() string { return s.root }

// CacheLen returns the number of cached files.
func (s *Store) CacheLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Write stores content at p, creating parent directories as needed,
// then broadcasts file-change and refresh-preview. Concurrent writes
// are serialized by the store lock, so the cache and the mirror never
// disagree about the final contents of a path.
func (s *Store) Write(ctx context.Context, p string, content []byte) error {
	timer := monitoring.NewTimer(s.metrics, "write")

	disk, norm, err := s.resolve(p)
	if err != nil {
		timer.Stop("error")
		return err
	}
	if norm == "/" {
		timer.Stop("error")
		return types.InvalidArgument("cannot write to the session root")
	}

	s.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(disk), 0o755); err != nil {
		s.mu.Unlock()
		timer.Stop("error")
		return types.Internal("create parent directory: %v", err)
	}
	if err := os.WriteFile(disk, content, 0o644); err != nil {
		s.mu.Unlock()
		timer.Stop("error")
		return mapPathError("write", norm, err)
	}
	// Copy going in so callers cannot alias the cache afterwards.
	s.cache[norm] = append([]byte(nil), content...)
	s.mu.Unlock()

	timer.Stop("ok")
	s.logger.Debug("file written",
		zap.String("session_id", s.sessionID),
		zap.String("path", norm),
		zap.Int("bytes", len(content)),
	)

	s.emit(types.NewFileChangeEvent(s.sessionID, norm))
	s.emit(types.NewRefreshPreviewEvent(s.sessionID))
	return nil
}

// Read returns the contents of the file at p, from the cache when
// possible and from disk otherwise. A disk read populates the cache.
func (s *Store) Read(ctx context.Context, p string) ([]byte, error) {
	timer := monitoring.NewTimer(s.metrics, "read")

	disk, norm, err := s.resolve(p)
	if err != nil {
		timer.Stop("error")
		return nil, err
	}
	if norm == "/" {
		timer.Stop("error")
		return nil, types.InvalidArgument("cannot read a directory: /")
	}

	s.mu.RLock()
	if content, ok := s.cache[norm]; ok {
		out := append([]byte(nil), content...)
		s.mu.RUnlock()
		timer.Stop("ok")
		return out, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if content, ok := s.cache[norm]; ok {
		timer.Stop("ok")
		return append([]byte(nil), content...), nil
	}

	info, err := os.Stat(disk)
	if err != nil {
		timer.Stop("error")
		return nil, mapPathError("read", norm, err)
	}
	if info.IsDir() {
		timer.Stop("error")
		return nil, types.InvalidArgument("cannot read a directory: %s", norm)
	}

	content, err := os.ReadFile(disk)
	if err != nil {
		timer.Stop("error")
		return nil, mapPathError("read", norm, err)
	}
	s.cache[norm] = content

	timer.Stop("ok")
	return append([]byte(nil), content...), nil
}

// Mkdir creates a directory at p. With recursive set it behaves like
// mkdir -p and is idempotent; without it the parent must exist and an
// existing path is an error.
func (s *Store) Mkdir(ctx context.Context, p string, recursive bool) error {
	timer := monitoring.NewTimer(s.metrics, "mkdir")

	disk, norm, err := s.resolve(p)
	if err != nil {
		timer.Stop("error")
		return err
	}
	if norm == "/" {
		if recursive {
			timer.Stop("ok")
			return nil
		}
		timer.Stop("error")
		return types.InvalidArgument("directory already exists: /")
	}

	if recursive {
		err = os.MkdirAll(disk, 0o755)
	} else {
		err = os.Mkdir(disk, 0o755)
	}
	if err != nil {
		timer.Stop("error")
		if errors.Is(err, fs.ErrExist) {
			return types.InvalidArgument("path already exists: %s", norm)
		}
		return mapPathError("mkdir", norm, err)
	}

	timer.Stop("ok")
	return nil
}

// List returns the entries of the directory at p: base names always,
// and full entry info when withTypes is set.
func (s *Store) List(ctx context.Context, p string, withTypes bool) ([]string, []types.EntryInfo, error) {
	timer := monitoring.NewTimer(s.metrics, "list")

	disk, norm, err := s.resolve(p)
	if err != nil {
		timer.Stop("error")
		return nil, nil, err
	}

	info, err := os.Stat(disk)
	if err != nil {
		timer.Stop("error")
		return nil, nil, mapPathError("list", norm, err)
	}
	if !info.IsDir() {
		timer.Stop("error")
		return nil, nil, types.InvalidArgument("not a directory: %s", norm)
	}

	dirents, err := os.ReadDir(disk)
	if err != nil {
		timer.Stop("error")
		return nil, nil, mapPathError("list", norm, err)
	}

	names := make([]string, 0, len(dirents))
	var entries []types.EntryInfo
	if withTypes {
		entries = make([]types.EntryInfo, 0, len(dirents))
	}
	for _, d := range dirents {
		names = append(names, d.Name())
		if !withTypes {
			continue
		}
		entry := types.EntryInfo{
			Name:  d.Name(),
			Path:  paths.Join(norm, d.Name()),
			IsDir: d.IsDir(),
		}
		if fi, err := d.Info(); err == nil && !d.IsDir() {
			entry.Size = fi.Size()
		}
		entries = append(entries, entry)
	}

	timer.Stop("ok")
	return names, entries, nil
}

// Remove deletes the file or directory at p. A non-empty directory is
// only deleted with recursive set; without it the contents are left
// untouched. The session root itself cannot be removed.
func (s *Store) Remove(ctx context.Context, p string, recursive bool) error {
	timer := monitoring.NewTimer(s.metrics, "remove")

	disk, norm, err := s.resolve(p)
	if err != nil {
		timer.Stop("error")
		return err
	}
	if norm == "/" {
		timer.Stop("error")
		return types.InvalidArgument("cannot remove the session root")
	}

	s.mu.Lock()
	if _, err := os.Stat(disk); err != nil {
		s.mu.Unlock()
		timer.Stop("error")
		return mapPathError("remove", norm, err)
	}
	if recursive {
		err = os.RemoveAll(disk)
	} else {
		err = os.Remove(disk)
	}
	if err != nil {
		s.mu.Unlock()
		timer.Stop("error")
		if errors.Is(err, syscall.ENOTEMPTY) {
			return types.InvalidArgument("directory not empty: %s", norm)
		}
		return mapPathError("remove", norm, err)
	}
	delete(s.cache, norm)
	prefix := norm + "/"
	for cached := range s.cache {
		if strings.HasPrefix(cached, prefix) {
			delete(s.cache, cached)
		}
	}
	s.mu.Unlock()

	timer.Stop("ok")
	s.logger.Debug("path removed",
		zap.String("session_id", s.sessionID),
		zap.String("path", norm),
	)

	s.emit(types.NewFileChangeEvent(s.sessionID, norm))
	s.emit(types.NewRefreshPreviewEvent(s.sessionID))
	return nil
}

// Stat returns metadata for the file or directory at p, including a
// detected MIME type for regular files.
func (s *Store) Stat(ctx context.Context, p string) (*types.StatInfo, error) {
	timer := monitoring.NewTimer(s.metrics, "stat")

	disk, norm, err := s.resolve(p)
	if err != nil {
		timer.Stop("error")
		return nil, err
	}

	info, err := os.Stat(disk)
	if err != nil {
		timer.Stop("error")
		return nil, mapPathError("stat", norm, err)
	}

	stat := &types.StatInfo{
		Name:    path.Base(norm),
		Path:    norm,
		IsDir:   info.IsDir(),
		ModTime: info.ModTime().UnixMilli(),
	}
	if !info.IsDir() {
		stat.Size = info.Size()
		if mt, err := mimetype.DetectFile(disk); err == nil {
			stat.Mime = mt.String()
		}
	}

	timer.Stop("ok")
	return stat, nil
}

func (s *Store) emit(ev types.Event) {
	if s.bus != nil {
		s.bus.Broadcast(ev)
	}
}

// resolve turns a client-supplied path into its on-disk location and
// normalized session form.
func (s *Store) resolve(p string) (string, string, error) {
	return paths.Resolve(s.root, p)
}

// mapPathError converts an os error into the wire taxonomy.
func mapPathError(op, p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return types.NotFound("%s: no such file or directory: %s", op, p)
	case errors.Is(err, fs.ErrPermission):
		return types.InvalidArgument("%s: permission denied: %s", op, p)
	default:
		return types.Internal("%s %s: %v", op, p, err)
	}
}
