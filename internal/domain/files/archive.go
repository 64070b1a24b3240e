package files

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/gzip"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/monitoring"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Archive streams the session tree as a gzipped tarball to w. Entry
// names are session-relative, so extracting reproduces the tree
// without the server's directory layout leaking into the archive.
func (s *Store) Archive(ctx context.Context, w io.Writer) error {
	timer := monitoring.NewTimer(s.metrics, "archive")

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	conf := fastwalk.Config{Follow: false}

	// fastwalk runs the callback from several goroutines and the tar
	// writer is single-stream, so each entry is written under a lock.
	var mu sync.Mutex

	err := fastwalk.Walk(&conf, s.root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || p == s.root {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return nil
		}
		header.Name = filepath.ToSlash(rel)

		mu.Lock()
		defer mu.Unlock()

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		file, err := os.Open(p)
		if err != nil {
			return nil
		}
		defer file.Close()

		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		timer.Stop("error")
		return types.Internal("archive failed: %v", err)
	}

	if err := tw.Close(); err != nil {
		timer.Stop("error")
		return types.Internal("archive failed: %v", err)
	}
	if err := gz.Close(); err != nil {
		timer.Stop("error")
		return types.Internal("archive failed: %v", err)
	}

	timer.Stop("ok")
	return nil
}
