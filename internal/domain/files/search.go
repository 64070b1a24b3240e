package files

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/monitoring"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Find walks the session tree and returns the files whose
// session-relative path matches pattern. Patterns use gitignore-style
// globs, so "**/*.ts" matches at any depth while "*.ts" matches only
// the top level. Results are root-anchored and sorted.
func (s *Store) Find(ctx context.Context, pattern string) ([]string, error) {
	timer := monitoring.NewTimer(s.metrics, "find")

	if err := validatePattern(pattern); err != nil {
		timer.Stop("error")
		return nil, err
	}
	pattern = strings.TrimPrefix(pattern, "/")

	var mu sync.Mutex
	matches := []string{}
	conf := fastwalk.Config{Follow: false}

	// fastwalk runs the callback from several goroutines.
	err := fastwalk.Walk(&conf, s.root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if ok, _ := doublestar.Match(pattern, rel); ok {
			mu.Lock()
			matches = append(matches, "/"+rel)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		timer.Stop("error")
		return nil, types.Internal("find failed: %v", err)
	}

	sort.Strings(matches)
	timer.Stop("ok")
	return matches, nil
}

// Watcher is a file watch subscription. Change notifications already
// flow to every connected client as file-change events, so there is
// nothing to tear down; Close exists so callers can treat the watch
// like any other subscription.
type Watcher struct {
	Pattern string
}

// Close releases the subscription. It is a no-op.
func (w *Watcher) Close() error { return nil }

// Watch validates pattern and returns a subscription handle for it.
// No per-pattern delivery is set up; consumers observe changes through
// the session's file-change events.
func (s *Store) Watch(ctx context.Context, pattern string) (*Watcher, error) {
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}
	return &Watcher{Pattern: pattern}, nil
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return types.InvalidArgument("pattern is required")
	}
	if !doublestar.ValidatePattern(pattern) {
		return types.InvalidArgument("invalid glob pattern: %s", pattern)
	}
	return nil
}
