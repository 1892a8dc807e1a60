// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package walker

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// Discovered is a regular file found under the root.
type Discovered struct {
	Path string
	Size int64
}

// Discover walks the root recursively and returns every regular file that
// is not ignored. Unreadable entries are logged and skipped. Symlinks are
// not followed.
func (w *Walker) Discover(ctx context.Context) ([]Discovered, error) {
	var out []Discovered
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == w.root {
				return err
			}
			w.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if w.matcher.ShouldIgnoreDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || w.matcher.ShouldIgnore(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			w.logger.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		out = append(out, Discovered{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("walking %s: %w", w.root, err)
	}
	return out, nil
}

// Accept is the candidate filter: the lowercase extension is allowed and
// the size is within [MinFileSize, MaxFileSize]. A MaxFileSize of zero
// disables the upper bound.
func (w *Walker) Accept(d Discovered) bool {
	if !w.AllowedExtension(d.Path) {
		return false
	}
	if d.Size < w.cfg.Walk.MinFileSize {
		return false
	}
	if limit := w.cfg.Walk.MaxFileSize; limit > 0 && d.Size > limit {
		return false
	}
	return true
}

// AllowedExtension reports whether path carries an extension on the
// allow-list. It needs no stat, so it also answers for removed files.
func (w *Walker) AllowedExtension(path string) bool {
	_, ok := w.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Candidates filters discovered files down to the ones worth extracting.
func (w *Walker) Candidates(found []Discovered) []string {
	out := make([]string, 0, len(found))
	for _, d := range found {
		if w.Accept(d) {
			out = append(out, d.Path)
			continue
		}
		w.logger.Debug("filtered out", "path", d.Path, "size", d.Size)
	}
	return out
}
