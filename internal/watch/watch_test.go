// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docwalk/internal/ignore"
)

const testInterval = 50 * time.Millisecond

func receiveBatch(t *testing.T, ch <-chan []Event, timeout time.Duration) []Event {
	t.Helper()
	select {
	case batch := <-ch:
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestDebouncer_CollapsesAndSorts(t *testing.T) {
	d := NewDebouncer(testInterval)
	d.Add("b.pdf", OpCreate)
	d.Add("b.pdf", OpWrite)
	d.Add("a.pdf", OpRemove)

	batch := receiveBatch(t, d.Output(), time.Second)
	assert.Equal(t, []Event{{Path: "a.pdf", Op: OpRemove}, {Path: "b.pdf", Op: OpWrite}}, batch)
}

func TestDebouncer_TimerReset(t *testing.T) {
	d := NewDebouncer(testInterval)
	d.Add("a.pdf", OpWrite)
	time.Sleep(testInterval / 2)
	d.Add("b.pdf", OpWrite)

	batch := receiveBatch(t, d.Output(), time.Second)
	assert.Len(t, batch, 2, "both events land in one batch")
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(testInterval)
	d.Add("a.pdf", OpWrite)
	d.Stop()
	d.Stop()
	d.Add("b.pdf", OpWrite)

	_, ok := <-d.Output()
	assert.False(t, ok, "output is closed without a pending flush")
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "rename", OpRename.String())
	assert.Equal(t, "unknown", Op(42).String())
}

func TestWatcher_ServeBatches(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	m, err := ignore.NewMatcher(ignore.MatcherOptions{RootDir: root})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := New(root, m, testInterval, logger)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batches := make(chan []Event, 4)
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Serve(ctx, func(_ context.Context, b []Event) error {
			calls.Add(1)
			batches <- b
			return nil
		})
	}()

	// Give the event loop a moment to start.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "report.pdf"), []byte("%PDF"), 0o644))

	batch := receiveBatch(t, batches, 3*time.Second)
	var paths []string
	for _, e := range batch {
		paths = append(paths, filepath.Base(e.Path))
	}
	assert.Contains(t, paths, "report.pdf")
	assert.NotContains(t, paths, "x.md", "ignored directories are not watched")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

type reloadCounter struct {
	*ignore.Matcher
	reloads atomic.Int32
}

func (r *reloadCounter) Reload() {
	r.reloads.Add(1)
	r.Matcher.Reload()
}

func TestWatcher_ReloadsOnIgnoreFileChange(t *testing.T) {
	root := t.TempDir()
	m, err := ignore.NewMatcher(ignore.MatcherOptions{RootDir: root})
	require.NoError(t, err)
	rc := &reloadCounter{Matcher: m}

	w, err := New(root, rc, testInterval, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := make(chan struct{}, 4)
	go func() {
		_ = w.Serve(ctx, func(context.Context, []Event) error {
			got <- struct{}{}
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, ignore.DocwalkIgnoreFile), []byte("tmp/\n"), 0o644))

	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("no batch for ignore file change")
	}
	assert.GreaterOrEqual(t, rc.reloads.Load(), int32(1))
}

func TestWatcher_FilterDropsNonDocuments(t *testing.T) {
	root := t.TempDir()
	m, err := ignore.NewMatcher(ignore.MatcherOptions{RootDir: root})
	require.NoError(t, err)

	onlyPDF := func(path string) bool { return filepath.Ext(path) == ".pdf" }
	w, err := New(root, m, testInterval, slog.New(slog.NewTextHandler(io.Discard, nil)), WithFilter(onlyPDF))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	batches := make(chan []Event, 4)
	go func() {
		_ = w.Serve(ctx, func(_ context.Context, b []Event) error {
			batches <- b
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "docwalk.db-wal"), []byte("wal"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "records.jsonl"), []byte("{}"), 0o644))

	select {
	case b := <-batches:
		t.Fatalf("unexpected batch for non-document writes: %v", b)
	case <-time.After(6 * testInterval):
	}

	require.NoError(t, os.WriteFile(filepath.Join(root, ".docwalkignore"), []byte("tmp/\n"), 0o644))
	batch := receiveBatch(t, batches, 3*time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, ignore.DocwalkIgnoreFile, filepath.Base(batch[0].Path), "ignore files bypass the filter")

	require.NoError(t, os.WriteFile(filepath.Join(root, "report.pdf"), []byte("%PDF"), 0o644))
	batch = receiveBatch(t, batches, 3*time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "report.pdf", filepath.Base(batch[0].Path))
}
