// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scheduler

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/docwalk/pkg/types"
)

// Gate is a named counting limiter. Work runs through Do, which pairs every
// acquire with a release on all exit paths.
type Gate struct {
	name string
	size int64
	sem  *semaphore.Weighted
}

// NewGate returns a gate admitting at most size concurrent holders.
// Sizes below one are raised to one.
func NewGate(name string, size int) *Gate {
	if size < 1 {
		size = 1
	}
	return &Gate{name: name, size: int64(size), sem: semaphore.NewWeighted(int64(size))}
}

// Name returns the gate's name.
func (g *Gate) Name() string { return g.name }

// Size returns the number of concurrent holders the gate admits.
func (g *Gate) Size() int { return int(g.size) }

// Do acquires the gate, runs fn and releases the gate, even if fn panics.
// It returns ctx.Err() wrapped with the gate name if acquisition is
// cancelled, in which case fn is not run.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquiring %s gate: %w", g.name, err)
	}
	defer g.sem.Release(1)
	return fn()
}

// Gates are the three admission gates a file passes through.
type Gates struct {
	// Files bounds concurrent open-file operations. It is the most
	// briefly held gate and the widest by default.
	Files *Gate
	// InFlight bounds files that are mid-pipeline.
	InFlight *Gate
	// Extract bounds concurrent primary extractor invocations.
	Extract *Gate
}

// NewGates sizes the gates from the run's limits.
func NewGates(limits types.ResourceLimits) Gates {
	return Gates{
		Files:    NewGate("files", limits.MaxOpenFiles),
		InFlight: NewGate("in-flight", limits.MaxInFlightFiles),
		Extract:  NewGate("extract", limits.MaxConcurrentExtractions),
	}
}
