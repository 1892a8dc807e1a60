// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package walker

import (
	"sort"
	"sync"
)

// ProcessedSet holds the paths that produced a FileRecord in the current
// run, and whether that record's text was empty. It is the liveness
// reference for cache reconciliation.
type ProcessedSet struct {
	mu    sync.Mutex
	paths map[string]bool
}

func newProcessedSet() *ProcessedSet {
	return &ProcessedSet{paths: make(map[string]bool)}
}

// Add records path. empty marks a record with no usable text.
func (s *ProcessedSet) Add(path string, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[path] = empty
}

// Empty reports whether path was recorded with empty text.
func (s *ProcessedSet) Empty(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paths[path]
}

// Len returns the number of recorded paths.
func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

// Paths returns the recorded paths in lexical order.
func (s *ProcessedSet) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
