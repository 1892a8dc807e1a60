// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// Fingerprint identifies one file state: a hex digest over size, mtime and
// a boundary sample of the content. It is the content cache key.
type Fingerprint string

// String returns the hex digest.
func (f Fingerprint) String() string { return string(f) }

// FileRecord is the normalized output for one processed file. Records are
// built once per file per run and never mutated afterwards.
type FileRecord struct {
	// Fingerprint is the cache key the text was stored under.
	Fingerprint Fingerprint `json:"fingerprint" yaml:"fingerprint"`

	// Text is the extracted content. Empty text marks a known extraction
	// failure, not an unprocessed file.
	Text string `json:"text" yaml:"text"`

	// SizeKB is the byte size divided by 1024, rounded to nearest.
	SizeKB int64 `json:"size_kb" yaml:"size_kb"`

	// CreatedAt is the file creation time as reported by the filesystem.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// ModifiedAt is the file modification time.
	ModifiedAt time.Time `json:"modified_at" yaml:"modified_at"`

	// Extension is the lowercase extension without the leading dot.
	Extension string `json:"extension" yaml:"extension"`

	// Path is the absolute path of the source file.
	Path string `json:"path" yaml:"path"`

	// Location tags where the file came from (e.g. "Local Files").
	Location string `json:"location" yaml:"location"`
}

// Failed reports whether extraction produced no usable text.
func (r FileRecord) Failed() bool {
	return strings.TrimSpace(r.Text) == ""
}

// SizeToKB converts a byte count to kilobytes, rounding half up.
func SizeToKB(size int64) int64 {
	return (size + 512) / 1024
}

// Outcome is the terminal state of one discovered file.
type Outcome string

const (
	OutcomeFilteredOut      Outcome = "filtered"
	OutcomeCacheHit         Outcome = "cache_hit"
	OutcomeExtracted        Outcome = "extracted"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeIOError          Outcome = "io_error"
	OutcomeTaskError        Outcome = "task_error"
)

// ReconcileMode selects what happens to orphaned cache entries after a run.
type ReconcileMode string

const (
	ReconcileDryRun ReconcileMode = "dry-run"
	ReconcileDelete ReconcileMode = "delete"
	ReconcileSkip   ReconcileMode = "skip"
)

// RunSummary holds the counts from one pipeline run.
type RunSummary struct {
	Root       string    `json:"root" yaml:"root"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	// Discovered is every regular file seen by the walk.
	Discovered int `json:"discovered" yaml:"discovered"`
	// Candidates passed the extension and size filter.
	Candidates int `json:"candidates" yaml:"candidates"`
	// Processed produced a FileRecord.
	Processed int `json:"processed" yaml:"processed"`
	CacheHits int `json:"cache_hits" yaml:"cache_hits"`
	Extracted int `json:"extracted" yaml:"extracted"`
	// Failed produced a record with empty text.
	Failed int `json:"failed" yaml:"failed"`
	// Skipped candidates hit a task error and produced no record.
	Skipped int `json:"skipped" yaml:"skipped"`

	FailedPaths []string `json:"failed_paths" yaml:"failed_paths"`

	Reconcile ReconcileMode `json:"reconcile" yaml:"reconcile"`
	// Removed is the number of orphaned cache entries removed, or that
	// would be removed in a dry run.
	Removed int `json:"removed" yaml:"removed"`
}

// Duration returns the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// HasFailures reports whether any file ended with empty text.
func (s RunSummary) HasFailures() bool {
	return s.Failed > 0
}
