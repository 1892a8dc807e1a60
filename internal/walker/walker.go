// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package walker discovers documents under a root, drives them through the
// cache and extraction engine in bounded chunks, and reconciles the cache
// against the files seen in the run.
//
// Per file: Discovered → Filtered-out, or Candidate → Fingerprinted →
// CacheHit → Emitted, or CacheMiss → Extracting → Cached → Emitted. A
// stat, fingerprint or cache-read error emits a record with empty text. A
// panic inside a file task is logged and the file produces no record.
package walker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/docwalk/internal/cache"
	"github.com/pdiddy/docwalk/internal/fingerprint"
	"github.com/pdiddy/docwalk/internal/ignore"
	"github.com/pdiddy/docwalk/internal/scheduler"
	"github.com/pdiddy/docwalk/pkg/types"
)

// ErrRunInProgress is returned by Run when another Run on the same Walker
// has not finished.
var ErrRunInProgress = errors.New("a run is already in progress")

// TextExtractor returns the text of a file. An empty result marks a known
// extraction failure.
type TextExtractor interface {
	Extract(ctx context.Context, path string) string
}

// Admitter blocks until the host has headroom for another extraction.
type Admitter interface {
	Admit(ctx context.Context) error
}

// Deps are the collaborators a Walker drives.
type Deps struct {
	Cache    *cache.Cache
	Engine   TextExtractor
	Governor Admitter
	// Matcher is built from the walk config when nil.
	Matcher *ignore.Matcher
	Logger  *slog.Logger
}

// Result is the output of one run.
type Result struct {
	// Records holds one record per processed file in completion order.
	Records []types.FileRecord
	Summary types.RunSummary
}

// Walker runs the pipeline over one root directory.
type Walker struct {
	cfg        types.Config
	root       string
	extensions map[string]struct{}
	cache      *cache.Cache
	engine     TextExtractor
	governor   Admitter
	matcher    *ignore.Matcher
	gates      scheduler.Gates
	logger     *slog.Logger

	lock      runLock
	processed *ProcessedSet

	// fingerprintFile is swapped in tests to observe which files are hashed.
	fingerprintFile func(path string) (types.Fingerprint, os.FileInfo, error)
}

// New validates cfg and returns a Walker. The root is made absolute.
func New(cfg types.Config, deps Deps) (*Walker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Cache == nil || deps.Engine == nil {
		return nil, errors.New("walker needs a cache and an extraction engine")
	}
	root, err := filepath.Abs(cfg.Walk.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", cfg.Walk.Root, err)
	}
	cfg.Walk.Root = root

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	matcher := deps.Matcher
	if matcher == nil {
		matcher, err = ignore.NewMatcher(ignore.MatcherOptions{
			RootDir:  root,
			CacheDir: deps.Cache.Dir(),
			Exclude:  cfg.Walk.Exclude,
		})
		if err != nil {
			return nil, err
		}
	}

	exts := make(map[string]struct{}, len(cfg.Walk.Extensions))
	for _, e := range cfg.Walk.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}

	return &Walker{
		cfg:             cfg,
		root:            root,
		extensions:      exts,
		cache:           deps.Cache,
		engine:          deps.Engine,
		governor:        deps.Governor,
		matcher:         matcher,
		gates:           scheduler.NewGates(cfg.Limits),
		logger:          logger,
		processed:       newProcessedSet(),
		fingerprintFile: fingerprint.File,
	}, nil
}

// Root returns the absolute walk root.
func (w *Walker) Root() string { return w.root }

// Matcher returns the ignore matcher used for discovery.
func (w *Walker) Matcher() *ignore.Matcher { return w.matcher }

// Processed returns the set of paths recorded by the most recent run.
func (w *Walker) Processed() *ProcessedSet { return w.processed }

// Run walks the root, processes every candidate and reconciles the cache
// according to mode. Per-file failures never fail the run. Run returns an
// error when the root cannot be walked, when another run is active, or
// when ctx is cancelled; on cancellation the partial result is returned
// and reconciliation is skipped.
func (w *Walker) Run(ctx context.Context, mode types.ReconcileMode) (*Result, error) {
	if !w.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer w.lock.Release()

	switch mode {
	case types.ReconcileDryRun, types.ReconcileDelete, types.ReconcileSkip:
	default:
		return nil, fmt.Errorf("unknown reconcile mode %q", mode)
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("root %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", w.root)
	}

	w.processed = newProcessedSet()
	run := &runState{
		summary: types.RunSummary{
			Root:      w.root,
			StartedAt: time.Now(),
			Reconcile: mode,
		},
	}

	found, err := w.Discover(ctx)
	if err != nil {
		return nil, err
	}
	candidates := w.Candidates(found)
	run.summary.Discovered = len(found)
	run.summary.Candidates = len(candidates)
	w.logger.Info("discovered files", "root", w.root, "files", len(found), "candidates", len(candidates))

	sched := scheduler.New(scheduler.Options{
		ChunkSize:  w.cfg.Walk.ChunkSize,
		ChunkPause: w.cfg.Walk.ChunkPause,
		OnError: func(e *scheduler.TaskError) {
			run.skip()
			if e.Panic {
				w.logger.Error("file task panicked", "path", e.Item, "error", e.Err, "stack", string(e.Stack))
				return
			}
			w.logger.Warn("file task failed", "path", e.Item, "error", e.Err)
		},
		OnChunk: func(index, total int) {
			w.logger.Debug("chunk done", "chunk", index+1, "of", total)
		},
	})

	if err := sched.Run(ctx, candidates, func(ctx context.Context, path string) error {
		return w.processFile(ctx, path, run)
	}); err != nil {
		res := run.result()
		return res, fmt.Errorf("run interrupted: %w", err)
	}

	failed, live, err := w.audit(ctx)
	if err != nil {
		// An incomplete live set would delete entries that are still in use.
		return run.result(), fmt.Errorf("run interrupted before reconciliation: %w", err)
	}
	run.summary.FailedPaths = failed

	if mode != types.ReconcileSkip {
		removed, err := w.cache.Reconcile(live, mode == types.ReconcileDryRun)
		run.summary.Removed = removed
		if err != nil {
			w.logger.Error("cache reconciliation incomplete", "error", err)
		}
	}

	res := run.result()
	w.logSummary(res.Summary)
	return res, nil
}

// processFile is one scheduler task. It holds the in-flight gate for the
// whole file. The returned error is non-nil only when a gate could not be
// acquired, which makes the file a skipped task.
func (w *Walker) processFile(ctx context.Context, path string, run *runState) error {
	return w.gates.InFlight.Do(ctx, func() error {
		rec, outcome, err := w.buildRecord(ctx, path)
		if err != nil {
			return err
		}
		run.emit(rec, outcome)
		w.processed.Add(path, rec.Failed())
		w.logger.Debug("file processed", "path", path, "outcome", outcome, "fingerprint", rec.Fingerprint)
		return nil
	})
}

func (w *Walker) buildRecord(ctx context.Context, path string) (types.FileRecord, types.Outcome, error) {
	var (
		fp      types.Fingerprint
		info    os.FileInfo
		statErr error
	)
	if err := w.gates.Files.Do(ctx, func() error {
		fp, info, statErr = w.fingerprintFile(path)
		return nil
	}); err != nil {
		return types.FileRecord{}, "", err
	}
	if statErr != nil {
		w.logger.Warn("fingerprint failed", "path", path, "error", statErr)
		return w.newRecord(path, "", "", nil), types.OutcomeIOError, nil
	}

	var (
		cached  string
		hit     bool
		readErr error
	)
	if err := w.gates.Files.Do(ctx, func() error {
		cached, hit, readErr = w.cache.Lookup(fp)
		return nil
	}); err != nil {
		return types.FileRecord{}, "", err
	}
	if readErr != nil {
		w.logger.Warn("cache read failed", "path", path, "fingerprint", fp, "error", readErr)
		return w.newRecord(path, fp, "", info), types.OutcomeIOError, nil
	}
	if hit {
		return w.newRecord(path, fp, cached, info), types.OutcomeCacheHit, nil
	}

	var (
		text     string
		admitErr error
	)
	if err := w.gates.Extract.Do(ctx, func() error {
		if w.governor != nil {
			if admitErr = w.governor.Admit(ctx); admitErr != nil {
				return nil
			}
		}
		text = w.engine.Extract(ctx, path)
		return nil
	}); err != nil {
		return types.FileRecord{}, "", err
	}
	if admitErr != nil {
		// Nothing was extracted, so nothing is committed to the cache.
		w.logger.Warn("extraction not admitted", "path", path, "error", admitErr)
		return w.newRecord(path, fp, "", info), types.OutcomeExtractionFailed, nil
	}

	var storeErr error
	if err := w.gates.Files.Do(ctx, func() error {
		storeErr = w.cache.Store(fp, text)
		return nil
	}); err != nil {
		return types.FileRecord{}, "", err
	}
	if storeErr != nil {
		w.logger.Warn("cache write failed", "path", path, "fingerprint", fp, "error", storeErr)
	}

	rec := w.newRecord(path, fp, text, info)
	if rec.Failed() {
		w.logger.Warn("no text extracted", "path", path)
		return rec, types.OutcomeExtractionFailed, nil
	}
	return rec, types.OutcomeExtracted, nil
}

// newRecord builds a record. info may be nil when the file could not be
// stat'ed. Portable creation times are not available, so CreatedAt is the
// modification time.
func (w *Walker) newRecord(path string, fp types.Fingerprint, text string, info os.FileInfo) types.FileRecord {
	rec := types.FileRecord{
		Fingerprint: fp,
		Text:        text,
		Extension:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Path:        path,
		Location:    w.cfg.Walk.Location,
	}
	if info != nil {
		rec.SizeKB = types.SizeToKB(info.Size())
		rec.ModifiedAt = info.ModTime()
		rec.CreatedAt = info.ModTime()
	}
	return rec
}

func (w *Walker) logSummary(s types.RunSummary) {
	w.logger.Info("run complete",
		"root", s.Root,
		"discovered", s.Discovered,
		"candidates", s.Candidates,
		"processed", s.Processed,
		"cache_hits", s.CacheHits,
		"extracted", s.Extracted,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"reconcile", s.Reconcile,
		"stale_entries", s.Removed,
		"duration", s.Duration().Round(time.Millisecond),
	)
}

// runState collects records and counts from concurrent tasks.
type runState struct {
	mu      sync.Mutex
	records []types.FileRecord
	summary types.RunSummary
}

func (r *runState) emit(rec types.FileRecord, outcome types.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	r.summary.Processed++
	switch outcome {
	case types.OutcomeCacheHit:
		r.summary.CacheHits++
	case types.OutcomeExtracted:
		r.summary.Extracted++
	}
	if rec.Failed() {
		r.summary.Failed++
	}
}

func (r *runState) skip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Skipped++
}

func (r *runState) result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.summary
	s.FinishedAt = time.Now()
	return &Result{Records: r.records, Summary: s}
}
