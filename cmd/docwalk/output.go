// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docwalk/pkg/types"
)

// writeRecords writes records to path, or to stdout when path is "-".
// The format follows the extension: .json is one array, .yaml or .yml a
// YAML sequence, anything else one JSON object per line.
func writeRecords(path string, records []types.FileRecord) error {
	if path == "-" {
		return encodeRecords(os.Stdout, "", records)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := encodeRecords(f, strings.ToLower(filepath.Ext(path)), records); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func encodeRecords(w io.Writer, ext string, records []types.FileRecord) error {
	bw := bufio.NewWriter(w)
	switch ext {
	case ".json":
		enc := json.NewEncoder(bw)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []types.FileRecord{}
		}
		if err := enc.Encode(records); err != nil {
			return err
		}
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(bw)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		enc := json.NewEncoder(bw)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// printSummary writes a human-readable run summary.
func printSummary(w io.Writer, s types.RunSummary) {
	fmt.Fprintf(w, "Root:        %s\n", s.Root)
	fmt.Fprintf(w, "Duration:    %s\n", s.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Discovered:  %d\n", s.Discovered)
	fmt.Fprintf(w, "Candidates:  %d\n", s.Candidates)
	fmt.Fprintf(w, "Processed:   %d (cache hits %d, extracted %d)\n", s.Processed, s.CacheHits, s.Extracted)
	fmt.Fprintf(w, "Failed:      %d\n", s.Failed)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "Skipped:     %d\n", s.Skipped)
	}
	switch s.Reconcile {
	case types.ReconcileDryRun:
		fmt.Fprintf(w, "Orphans:     %d (dry run, nothing removed)\n", s.Removed)
	case types.ReconcileDelete:
		fmt.Fprintf(w, "Removed:     %d orphaned cache entries\n", s.Removed)
	}
	for _, p := range s.FailedPaths {
		fmt.Fprintf(w, "  failed: %s\n", p)
	}
}
