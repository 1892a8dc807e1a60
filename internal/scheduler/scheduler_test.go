// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docwalk/pkg/types"
)

func items(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("file-%03d", i)
	}
	return out
}

func TestChunks(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{name: "empty", n: 0, size: 50, sizes: nil},
		{name: "exact multiple", n: 100, size: 50, sizes: []int{50, 50}},
		{name: "remainder", n: 120, size: 50, sizes: []int{50, 50, 20}},
		{name: "default size", n: 51, size: 0, sizes: []int{50, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, c := range Chunks(items(tt.n), tt.size) {
				got = append(got, len(c))
			}
			assert.Equal(t, tt.sizes, got)
		})
	}
}

func TestRun_EveryItemOnceDespiteFailingSiblings(t *testing.T) {
	var (
		mu       sync.Mutex
		done     []string
		failures []*TaskError
	)
	s := New(Options{
		ChunkSize:  50,
		ChunkPause: -1,
		OnError: func(e *TaskError) {
			mu.Lock()
			failures = append(failures, e)
			mu.Unlock()
		},
	})

	in := items(120)
	err := s.Run(context.Background(), in, func(ctx context.Context, item string) error {
		switch item {
		case "file-007":
			panic("corrupt header")
		case "file-060":
			return errors.New("stat failed")
		}
		mu.Lock()
		done = append(done, item)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, done, 118)
	sort.Strings(done)
	for i := 1; i < len(done); i++ {
		assert.NotEqual(t, done[i-1], done[i], "item processed twice")
	}

	require.Len(t, failures, 2)
	byItem := map[string]*TaskError{}
	for _, f := range failures {
		byItem[f.Item] = f
	}
	assert.True(t, byItem["file-007"].Panic)
	assert.NotEmpty(t, byItem["file-007"].Stack)
	assert.False(t, byItem["file-060"].Panic)
	assert.EqualError(t, byItem["file-060"].Unwrap(), "stat failed")
}

func TestRun_ChunksAreSequential(t *testing.T) {
	var (
		running atomic.Int32
		maxSeen atomic.Int32
		chunks  []int
	)
	s := New(Options{
		ChunkSize:  10,
		ChunkPause: time.Millisecond,
		OnChunk: func(index, total int) {
			assert.Zero(t, running.Load(), "chunk reported before its tasks drained")
			chunks = append(chunks, index)
			assert.Equal(t, 3, total)
		},
	})

	err := s.Run(context.Background(), items(25), func(ctx context.Context, item string) error {
		n := running.Add(1)
		for {
			old := maxSeen.Load()
			if n <= old || maxSeen.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, chunks)
	assert.LessOrEqual(t, maxSeen.Load(), int32(10), "more tasks in flight than one chunk")
}

func TestRun_CancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int32
	s := New(Options{
		ChunkSize:  5,
		ChunkPause: -1,
		OnChunk: func(index, total int) {
			if index == 0 {
				cancel()
			}
		},
	})

	err := s.Run(ctx, items(20), func(ctx context.Context, item string) error {
		count.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(5), count.Load())
}

func TestGate_BoundsConcurrency(t *testing.T) {
	g := NewGate("extract", 2)
	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), func() error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestGate_ReleasesOnErrorAndPanic(t *testing.T) {
	g := NewGate("files", 1)

	err := g.Do(context.Background(), func() error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")

	func() {
		defer func() { _ = recover() }()
		_ = g.Do(context.Background(), func() error { panic("bad") })
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ran := false
	require.NoError(t, g.Do(ctx, func() error { ran = true; return nil }))
	assert.True(t, ran, "gate must be free after error and panic")
}

func TestGate_CancelledAcquire(t *testing.T) {
	g := NewGate("in-flight", 1)
	require.True(t, g.sem.TryAcquire(1))
	defer g.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := g.Do(ctx, func() error { ran = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "in-flight")
	assert.False(t, ran)
}

func TestNewGates(t *testing.T) {
	g := NewGates(types.ResourceLimits{MaxOpenFiles: 16, MaxInFlightFiles: 8, MaxConcurrentExtractions: 0})
	assert.Equal(t, 16, g.Files.Size())
	assert.Equal(t, 8, g.InFlight.Size())
	assert.Equal(t, 1, g.Extract.Size(), "non-positive sizes are raised to one")
	assert.Equal(t, "extract", g.Extract.Name())

	d := NewGates(types.DefaultConfig().Limits)
	assert.Greater(t, d.Files.Size(), d.InFlight.Size(), "file IO is short-lived and gets the widest gate")
	assert.Greater(t, d.InFlight.Size(), d.Extract.Size())
}
