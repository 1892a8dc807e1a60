// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scheduler drives per-file tasks through fixed-size chunks with
// bounded concurrency and a pause between chunks.
//
// Inside a chunk every task runs independently and completion order is
// unspecified. A task that panics or returns an error is reported through
// OnError and never cancels its siblings. Chunk N+1 starts only after
// chunk N has drained.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultChunkSize  = 50
	defaultChunkPause = 100 * time.Millisecond
)

// Task processes one item. Returned errors are reported, not propagated.
type Task func(ctx context.Context, item string) error

// TaskError describes a task that failed or panicked.
type TaskError struct {
	Item  string
	Err   error
	Panic bool
	Stack []byte
}

func (e *TaskError) Error() string {
	if e.Panic {
		return fmt.Sprintf("task %s panicked: %v", e.Item, e.Err)
	}
	return fmt.Sprintf("task %s: %v", e.Item, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Options configures a Scheduler.
type Options struct {
	// ChunkSize is the number of items per chunk (default 50).
	ChunkSize int
	// ChunkPause is slept between chunks (default 100ms). Negative disables it.
	ChunkPause time.Duration
	// OnError receives every failed task. It may be called concurrently.
	OnError func(*TaskError)
	// OnChunk is called after each chunk drains with its 0-based index
	// and the number of chunks.
	OnChunk func(index, total int)
}

// Scheduler runs tasks chunk by chunk.
type Scheduler struct {
	chunkSize int
	pause     time.Duration
	onError   func(*TaskError)
	onChunk   func(index, total int)
}

// New returns a Scheduler with defaults applied.
func New(opts Options) *Scheduler {
	s := &Scheduler{
		chunkSize: opts.ChunkSize,
		pause:     opts.ChunkPause,
		onError:   opts.OnError,
		onChunk:   opts.OnChunk,
	}
	if s.chunkSize <= 0 {
		s.chunkSize = defaultChunkSize
	}
	if s.pause == 0 {
		s.pause = defaultChunkPause
	}
	if s.onError == nil {
		s.onError = func(*TaskError) {}
	}
	return s
}

// Chunks splits items into consecutive slices of at most size elements.
func Chunks(items []string, size int) [][]string {
	if size <= 0 {
		size = defaultChunkSize
	}
	var chunks [][]string
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

// Run executes task for every item. It returns early only when ctx is
// cancelled between chunks; task failures never stop the run.
func (s *Scheduler) Run(ctx context.Context, items []string, task Task) error {
	chunks := Chunks(items, s.chunkSize)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.runChunk(ctx, chunk, task)

		if s.onChunk != nil {
			s.onChunk(i, len(chunks))
		}
		if i < len(chunks)-1 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.pause):
			}
		}
	}
	return nil
}

// runChunk runs every task in the chunk and waits for all of them. The
// group is created without a derived context so one failure does not
// cancel the rest.
func (s *Scheduler) runChunk(ctx context.Context, chunk []string, task Task) {
	var g errgroup.Group
	for _, item := range chunk {
		g.Go(func() error {
			s.runTask(ctx, item, task)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, item string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.onError(&TaskError{
				Item:  item,
				Err:   fmt.Errorf("%v", r),
				Panic: true,
				Stack: debug.Stack(),
			})
		}
	}()

	if err := task(ctx, item); err != nil {
		s.onError(&TaskError{Item: item, Err: err})
	}
}
