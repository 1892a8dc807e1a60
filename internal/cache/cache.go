// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores extracted text keyed by file fingerprint.
//
// Layout:
//
//	{dir}/
//	  {fingerprint}.txt   (plain text, one entry per fingerprint)
//
// Entries are not owned by a file. Two files that collide on a fingerprint
// share one entry and the last write wins.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/pdiddy/docwalk/pkg/types"
)

const (
	entryExt    = ".txt"
	tempPattern = ".store-*.tmp"

	// staleTempAge is how old a temp file must be before Reconcile treats
	// it as left behind by a killed writer.
	staleTempAge = 10 * time.Minute
)

// Cache is a content-addressable text store on an afero filesystem.
type Cache struct {
	fs  afero.Fs
	dir string
}

// New returns a cache rooted at dir, creating the directory if needed.
func New(fs afero.Fs, dir string) (*Cache, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return &Cache{fs: fs, dir: dir}, nil
}

// NewOS returns a cache backed by the host filesystem.
func NewOS(dir string) (*Cache, error) {
	return New(afero.NewOsFs(), dir)
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) entryPath(fp types.Fingerprint) string {
	return filepath.Join(c.dir, string(fp)+entryExt)
}

// Lookup returns the cached text for fp. A miss returns ok=false and a nil
// error.
func (c *Cache) Lookup(fp types.Fingerprint) (text string, ok bool, err error) {
	data, err := afero.ReadFile(c.fs, c.entryPath(fp))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading cache entry %s: %w", fp, err)
	}
	return string(data), true, nil
}

// Store writes text under fp. The write goes to a temporary file that is
// renamed into place, so readers never see a partial entry.
func (c *Cache) Store(fp types.Fingerprint, text string) error {
	tmp, err := afero.TempFile(c.fs, c.dir, tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", fp, err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.WriteString(text)
	closeErr := tmp.Close()
	if writeErr != nil {
		c.fs.Remove(tmpPath)
		return fmt.Errorf("writing cache entry %s: %w", fp, writeErr)
	}
	if closeErr != nil {
		c.fs.Remove(tmpPath)
		return fmt.Errorf("closing cache entry %s: %w", fp, closeErr)
	}

	if err := c.fs.Rename(tmpPath, c.entryPath(fp)); err != nil {
		c.fs.Remove(tmpPath)
		return fmt.Errorf("renaming cache entry %s: %w", fp, err)
	}
	return nil
}

// Entries lists every fingerprint in the cache, sorted.
func (c *Cache) Entries() ([]types.Fingerprint, error) {
	infos, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return nil, fmt.Errorf("listing cache directory %s: %w", c.dir, err)
	}

	var fps []types.Fingerprint
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, entryExt) {
			continue
		}
		fps = append(fps, types.Fingerprint(strings.TrimSuffix(name, entryExt)))
	}
	sort.Slice(fps, func(i, j int) bool { return fps[i] < fps[j] })
	return fps, nil
}

// Reconcile removes every entry whose fingerprint is not in live and
// returns how many were removed. With dryRun it only counts. Removal
// failures are joined into the returned error and not counted. Outside a
// dry run, temp files older than staleTempAge are removed too; they are
// not counted as entries.
func (c *Cache) Reconcile(live map[types.Fingerprint]struct{}, dryRun bool) (int, error) {
	entries, err := c.Entries()
	if err != nil {
		return 0, err
	}

	var (
		removed int
		errs    []error
	)
	if !dryRun {
		errs = append(errs, c.sweepTemp(time.Now().Add(-staleTempAge)))
	}
	for _, fp := range entries {
		if _, ok := live[fp]; ok {
			continue
		}
		if dryRun {
			removed++
			continue
		}
		if err := c.fs.Remove(c.entryPath(fp)); err != nil {
			errs = append(errs, fmt.Errorf("removing cache entry %s: %w", fp, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// sweepTemp removes temp files last modified before cutoff.
func (c *Cache) sweepTemp(cutoff time.Time) error {
	infos, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return fmt.Errorf("listing cache directory %s: %w", c.dir, err)
	}
	var errs []error
	for _, info := range infos {
		if info.IsDir() || !isTemp(info.Name()) || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := c.fs.Remove(filepath.Join(c.dir, info.Name())); err != nil {
			errs = append(errs, fmt.Errorf("removing temp file %s: %w", info.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func isTemp(name string) bool {
	ok, _ := filepath.Match(tempPattern, name)
	return ok
}

// Stats summarises the cache contents.
type Stats struct {
	Entries int   `json:"entries" yaml:"entries"`
	Empty   int   `json:"empty" yaml:"empty"`
	Bytes   int64 `json:"bytes" yaml:"bytes"`
	// TempFiles are unfinished writes, live or left by a killed run.
	TempFiles int `json:"temp_files" yaml:"temp_files"`
}

// Stats counts entries, entries holding no text (known failures) and the
// total size of all entries.
func (c *Cache) Stats() (Stats, error) {
	infos, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return Stats{}, fmt.Errorf("listing cache directory %s: %w", c.dir, err)
	}

	var s Stats
	for _, info := range infos {
		name := info.Name()
		if !info.IsDir() && isTemp(name) {
			s.TempFiles++
			continue
		}
		if info.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, entryExt) {
			continue
		}
		s.Entries++
		s.Bytes += info.Size()
		if info.Size() == 0 {
			s.Empty++
			continue
		}
		// Whitespace-only entries are failures too; they are small, so
		// only those are read.
		if info.Size() <= 64 {
			data, err := afero.ReadFile(c.fs, filepath.Join(c.dir, name))
			if err == nil && strings.TrimSpace(string(data)) == "" {
				s.Empty++
			}
		}
	}
	return s, nil
}
