// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package walker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/docwalk/pkg/types"
)

// FailedFiles re-fingerprints every path processed by the last run and
// returns, sorted, those whose cached content is empty. A path that has no
// cache entry is reported when its record had empty text.
func (w *Walker) FailedFiles(ctx context.Context) ([]string, error) {
	failed, _, err := w.audit(ctx)
	return failed, err
}

// audit makes one pass over the processed set. It returns the failure
// report and the live fingerprints of every processed file whose record
// had text. The error is non-nil when ctx ends before every path was
// checked; both results are then incomplete.
func (w *Walker) audit(ctx context.Context) (failed []string, live map[types.Fingerprint]struct{}, err error) {
	live = make(map[types.Fingerprint]struct{})
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(w.gates.Files.Size())
	for _, path := range w.processed.Paths() {
		recordEmpty := w.processed.Empty(path)
		g.Go(func() error {
			var (
				fp    types.Fingerprint
				text  string
				found bool
				err   error
			)
			if gateErr := w.gates.Files.Do(ctx, func() error {
				if fp, _, err = w.fingerprintFile(path); err != nil {
					return nil
				}
				text, found, err = w.cache.Lookup(fp)
				return nil
			}); gateErr != nil {
				return gateErr
			}
			mu.Lock()
			defer mu.Unlock()
			if fp != "" && !recordEmpty {
				live[fp] = struct{}{}
			}
			if err != nil {
				w.logger.Warn("audit could not check file", "path", path, "error", err)
				if recordEmpty {
					failed = append(failed, path)
				}
				return nil
			}
			switch {
			case found && strings.TrimSpace(text) == "":
				failed = append(failed, path)
			case !found && recordEmpty:
				failed = append(failed, path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("auditing processed files: %w", err)
	}

	sort.Strings(failed)
	return failed, live, nil
}

// Clean reconciles the cache against the current tree without extracting
// anything: every candidate is fingerprinted and entries with text that
// no candidate produces are removed. With dryRun only the count is
// returned. Empty entries are never live, matching Run.
func (w *Walker) Clean(ctx context.Context, dryRun bool) (int, error) {
	if !w.lock.TryAcquire() {
		return 0, ErrRunInProgress
	}
	defer w.lock.Release()

	found, err := w.Discover(ctx)
	if err != nil {
		return 0, err
	}

	live := make(map[types.Fingerprint]struct{})
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(w.gates.Files.Size())
	for _, path := range w.Candidates(found) {
		g.Go(func() error {
			return w.gates.Files.Do(ctx, func() error {
				fp, _, err := w.fingerprintFile(path)
				if err != nil {
					return nil
				}
				text, ok, err := w.cache.Lookup(fp)
				if err == nil && (!ok || strings.TrimSpace(text) == "") {
					return nil
				}
				// An unreadable entry is kept.
				mu.Lock()
				live[fp] = struct{}{}
				mu.Unlock()
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("scanning candidates: %w", err)
	}

	removed, err := w.cache.Reconcile(live, dryRun)
	if err != nil {
		return removed, fmt.Errorf("reconciling cache: %w", err)
	}
	w.logger.Info("cache cleaned", "dry_run", dryRun, "stale_entries", removed)
	return removed, nil
}
