// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ignore decides which paths under a root are never walked. It
// combines a fixed list of tool and VCS directories, the root's
// .gitignore and .docwalkignore files, and doublestar exclude globs.
package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"
)

// Ignore file names read from the root directory.
const (
	GitIgnoreFile     = ".gitignore"
	DocwalkIgnoreFile = ".docwalkignore"
)

// skipDirs are directory names that never hold user documents.
var skipDirs = map[string]bool{
	".git": true, ".svn": true, ".hg": true,
	"node_modules": true, "__pycache__": true,
	".idea": true, ".vscode": true, ".cache": true,
	".venv": true, "venv": true, ".Trash": true,
}

// Matcher is safe for concurrent use; Reload swaps the ignore files under
// a write lock.
type Matcher struct {
	mu       sync.RWMutex
	rootDir  string
	cacheDir string
	exclude  []string
	git      gitignore.GitIgnore
	docwalk  gitignore.GitIgnore
}

// MatcherOptions configures a Matcher.
type MatcherOptions struct {
	// RootDir is the absolute walk root.
	RootDir string
	// CacheDir is skipped when it lies under RootDir.
	CacheDir string
	// Exclude holds doublestar globs matched against slash-separated
	// paths relative to RootDir.
	Exclude []string
}

// NewMatcher loads the ignore files under RootDir and validates the
// exclude globs.
func NewMatcher(opts MatcherOptions) (*Matcher, error) {
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	m := &Matcher{
		rootDir: filepath.Clean(opts.RootDir),
		exclude: opts.Exclude,
	}
	if opts.CacheDir != "" {
		if abs, err := filepath.Abs(opts.CacheDir); err == nil {
			m.cacheDir = abs
		}
	}
	m.git = loadIgnoreFile(filepath.Join(m.rootDir, GitIgnoreFile), m.rootDir)
	m.docwalk = loadIgnoreFile(filepath.Join(m.rootDir, DocwalkIgnoreFile), m.rootDir)
	return m, nil
}

// ShouldIgnoreDir reports whether the directory and everything below it
// should be skipped. The root itself is never ignored.
func (m *Matcher) ShouldIgnoreDir(path string) bool {
	if filepath.Clean(path) == m.rootDir {
		return false
	}
	if skipDirs[filepath.Base(path)] {
		return true
	}
	if m.cacheDir != "" && filepath.Clean(path) == m.cacheDir {
		return true
	}
	return m.match(path, true)
}

// ShouldIgnore reports whether a file should be skipped.
func (m *Matcher) ShouldIgnore(path string) bool {
	switch filepath.Base(path) {
	case GitIgnoreFile, DocwalkIgnoreFile:
		return true
	}
	return m.match(path, false)
}

// IsIgnoreFile reports whether path is one of the root's ignore files.
func (m *Matcher) IsIgnoreFile(path string) bool {
	dir, name := filepath.Split(path)
	if filepath.Clean(dir) != m.rootDir {
		return false
	}
	return name == GitIgnoreFile || name == DocwalkIgnoreFile
}

// Reload re-reads the ignore files from disk.
func (m *Matcher) Reload() {
	git := loadIgnoreFile(filepath.Join(m.rootDir, GitIgnoreFile), m.rootDir)
	docwalk := loadIgnoreFile(filepath.Join(m.rootDir, DocwalkIgnoreFile), m.rootDir)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.git = git
	m.docwalk = docwalk
}

func (m *Matcher) match(path string, isDir bool) bool {
	rel, err := filepath.Rel(m.rootDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, p := range m.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, gi := range []gitignore.GitIgnore{m.git, m.docwalk} {
		if gi == nil {
			continue
		}
		if match := gi.Relative(rel, isDir); match != nil && match.Ignore() {
			return true
		}
	}
	return false
}

// loadIgnoreFile returns nil when the file is missing or unreadable.
func loadIgnoreFile(path, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	return gitignore.New(f, baseDir, nil)
}
