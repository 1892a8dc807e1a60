// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMinFileSize is the smallest file worth extracting; anything
	// below it is presumed to be a stub.
	DefaultMinFileSize = 250

	// DefaultMaxFileSize caps the files handed to the extractor (10 MiB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// DefaultChunkSize is the number of files admitted per scheduler chunk.
	DefaultChunkSize = 50

	// DefaultLocation is the location tag stamped on every FileRecord.
	DefaultLocation = "Local Files"
)

// DefaultExtensions is the extension allow-list used when none is configured.
var DefaultExtensions = []string{
	".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx",
	".rtf", ".pptm", ".ppsx", ".odt", ".ods", ".odp", ".epub",
	".md",
}

// ResourceLimits bounds the pipeline's use of the host. It is fixed for the
// lifetime of one run.
type ResourceLimits struct {
	// MaxMemoryPercent is the system memory utilisation above which new
	// extractions wait (default 80).
	MaxMemoryPercent float64 `json:"max_memory_percent" yaml:"max_memory_percent" mapstructure:"max_memory_percent"`

	// MaxCPUPercent is the CPU utilisation above which new extractions
	// wait (default 90).
	MaxCPUPercent float64 `json:"max_cpu_percent" yaml:"max_cpu_percent" mapstructure:"max_cpu_percent"`

	// MaxConcurrentExtractions bounds simultaneous primary extractor
	// invocations (default 2).
	MaxConcurrentExtractions int `json:"max_concurrent_extractions" yaml:"max_concurrent_extractions" mapstructure:"max_concurrent_extractions"`

	// MaxInFlightFiles bounds how many files are mid-pipeline at once (default 8).
	MaxInFlightFiles int `json:"max_in_flight_files" yaml:"max_in_flight_files" mapstructure:"max_in_flight_files"`

	// MaxOpenFiles bounds concurrent open-file operations: fingerprint
	// sampling and cache reads and writes (default 16).
	MaxOpenFiles int `json:"max_open_files" yaml:"max_open_files" mapstructure:"max_open_files"`

	// AdmitTimeout bounds how long admission waits under resource
	// pressure. Zero waits indefinitely.
	AdmitTimeout time.Duration `json:"admit_timeout" yaml:"admit_timeout" mapstructure:"admit_timeout"`

	// PollInterval is the sleep between resource samples while waiting
	// (default 500ms).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`
}

// WalkConfig holds settings for discovery, filtering and chunking.
type WalkConfig struct {
	// Root is the directory walked recursively.
	Root string `json:"root" yaml:"root" mapstructure:"root"`

	// CacheDir stores one <fingerprint>.txt per extracted file. It is
	// created when absent.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`

	// Extensions is the allow-list of lowercase extensions including the dot.
	Extensions []string `json:"extensions" yaml:"extensions" mapstructure:"extensions"`

	// MinFileSize skips files smaller than this many bytes (default 250).
	MinFileSize int64 `json:"min_file_size" yaml:"min_file_size" mapstructure:"min_file_size"`

	// MaxFileSize skips files larger than this many bytes. Zero disables the cap.
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size" mapstructure:"max_file_size"`

	// Exclude lists doublestar globs, relative to Root, that are never walked.
	Exclude []string `json:"exclude" yaml:"exclude" mapstructure:"exclude"`

	// Location is the tag stamped on every record (default "Local Files").
	Location string `json:"location" yaml:"location" mapstructure:"location"`

	// ChunkSize is the number of files per scheduler chunk (default 50).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size" mapstructure:"chunk_size"`

	// ChunkPause is the deliberate pause between chunks (default 100ms).
	ChunkPause time.Duration `json:"chunk_pause" yaml:"chunk_pause" mapstructure:"chunk_pause"`
}

// ExtractionBackend identifies the primary text extractor.
type ExtractionBackend string

const (
	BackendTika       ExtractionBackend = "tika"
	BackendMarkitdown ExtractionBackend = "markitdown"
	BackendNative     ExtractionBackend = "native"
)

// ExtractionConfig holds settings for the primary extractor and the OCR fallback.
type ExtractionConfig struct {
	// Backend selects the primary extractor: tika, markitdown or native.
	Backend ExtractionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// TikaURL is the base URL of the Tika server (default http://localhost:9998).
	TikaURL string `json:"tika_url" yaml:"tika_url" mapstructure:"tika_url"`

	// Timeout bounds a single primary extractor call (default 180s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries on a busy Tika server (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// OCR enables the tesseract fallback.
	OCR bool `json:"ocr" yaml:"ocr" mapstructure:"ocr"`

	// OCRLanguage is passed to tesseract -l (default "eng").
	OCRLanguage string `json:"ocr_language" yaml:"ocr_language" mapstructure:"ocr_language"`

	// OCRDPI is the page render resolution (default 200).
	OCRDPI int `json:"ocr_dpi" yaml:"ocr_dpi" mapstructure:"ocr_dpi"`
}

// LedgerConfig locates the run-history database.
type LedgerConfig struct {
	// Path is the SQLite file. Empty disables the ledger.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// File receives log output; empty means stderr.
	File string `json:"file" yaml:"file" mapstructure:"file"`
}

// Config groups every setting for one pipeline run.
type Config struct {
	Walk       WalkConfig       `json:"walk" yaml:"walk" mapstructure:"walk"`
	Limits     ResourceLimits   `json:"limits" yaml:"limits" mapstructure:"limits"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		Walk: WalkConfig{
			CacheDir:    "cache_files",
			Extensions:  append([]string(nil), DefaultExtensions...),
			MinFileSize: DefaultMinFileSize,
			MaxFileSize: DefaultMaxFileSize,
			Location:    DefaultLocation,
			ChunkSize:   DefaultChunkSize,
			ChunkPause:  100 * time.Millisecond,
		},
		Limits: ResourceLimits{
			MaxMemoryPercent:         80,
			MaxCPUPercent:            90,
			MaxConcurrentExtractions: 2,
			MaxInFlightFiles:         8,
			MaxOpenFiles:             16,
			PollInterval:             500 * time.Millisecond,
		},
		Extraction: ExtractionConfig{
			Backend:     BackendTika,
			TikaURL:     "http://localhost:9998",
			Timeout:     180 * time.Second,
			MaxRetries:  3,
			OCR:         true,
			OCRLanguage: "eng",
			OCRDPI:      200,
		},
		Ledger: LedgerConfig{
			Path: "docwalk.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error
	if c.Walk.Root == "" {
		errs = append(errs, errors.New("walk.root is required"))
	}
	if c.Walk.CacheDir == "" {
		errs = append(errs, errors.New("walk.cache_dir is required"))
	}
	if len(c.Walk.Extensions) == 0 {
		errs = append(errs, errors.New("walk.extensions must not be empty"))
	}
	for _, ext := range c.Walk.Extensions {
		if !strings.HasPrefix(ext, ".") || ext != strings.ToLower(ext) {
			errs = append(errs, fmt.Errorf("walk.extensions: %q must be lowercase and start with a dot", ext))
		}
	}
	if c.Walk.MinFileSize < 0 {
		errs = append(errs, errors.New("walk.min_file_size must not be negative"))
	}
	if c.Walk.MaxFileSize < 0 {
		errs = append(errs, errors.New("walk.max_file_size must not be negative"))
	}
	if c.Walk.ChunkSize <= 0 {
		errs = append(errs, errors.New("walk.chunk_size must be positive"))
	}
	if p := c.Limits.MaxMemoryPercent; p <= 0 || p > 100 {
		errs = append(errs, fmt.Errorf("limits.max_memory_percent %.1f out of range (0, 100]", p))
	}
	if p := c.Limits.MaxCPUPercent; p <= 0 || p > 100 {
		errs = append(errs, fmt.Errorf("limits.max_cpu_percent %.1f out of range (0, 100]", p))
	}
	if c.Limits.MaxConcurrentExtractions <= 0 {
		errs = append(errs, errors.New("limits.max_concurrent_extractions must be positive"))
	}
	if c.Limits.MaxInFlightFiles <= 0 {
		errs = append(errs, errors.New("limits.max_in_flight_files must be positive"))
	}
	if c.Limits.MaxOpenFiles <= 0 {
		errs = append(errs, errors.New("limits.max_open_files must be positive"))
	}
	switch c.Extraction.Backend {
	case BackendTika, BackendMarkitdown, BackendNative:
	default:
		errs = append(errs, fmt.Errorf("extraction.backend %q: use tika, markitdown or native", c.Extraction.Backend))
	}
	return errors.Join(errs...)
}
