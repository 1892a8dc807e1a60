// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package governor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docwalk/pkg/types"
)

// scriptedSampler returns samples in order, repeating the last one.
type scriptedSampler struct {
	samples []Usage
	err     error
	calls   int
}

func (s *scriptedSampler) Sample(ctx context.Context) (Usage, error) {
	s.calls++
	if s.err != nil {
		return Usage{}, s.err
	}
	i := s.calls - 1
	if i >= len(s.samples) {
		i = len(s.samples) - 1
	}
	return s.samples[i], nil
}

func newTestGovernor(limits types.ResourceLimits, s Sampler) (*Governor, *int) {
	g := New(limits, s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sleeps := 0
	g.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return ctx.Err()
	}
	return g, &sleeps
}

var limits = types.ResourceLimits{
	MaxMemoryPercent: 80,
	MaxCPUPercent:    90,
	PollInterval:     time.Millisecond,
}

func TestAdmit(t *testing.T) {
	tests := []struct {
		name       string
		samples    []Usage
		wantSleeps int
		wantCalls  int
	}{
		{
			name:      "under both thresholds admits immediately",
			samples:   []Usage{{MemoryPercent: 40, CPUPercent: 10}},
			wantCalls: 1,
		},
		{
			name: "waits until memory drops",
			samples: []Usage{
				{MemoryPercent: 95, CPUPercent: 10},
				{MemoryPercent: 85, CPUPercent: 10},
				{MemoryPercent: 50, CPUPercent: 10},
			},
			wantSleeps: 2,
			wantCalls:  3,
		},
		{
			name: "waits until cpu drops",
			samples: []Usage{
				{MemoryPercent: 10, CPUPercent: 99},
				{MemoryPercent: 10, CPUPercent: 20},
			},
			wantSleeps: 1,
			wantCalls:  2,
		},
		{
			name: "threshold itself is not under",
			samples: []Usage{
				{MemoryPercent: 80, CPUPercent: 10},
				{MemoryPercent: 79.9, CPUPercent: 10},
			},
			wantSleeps: 1,
			wantCalls:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedSampler{samples: tt.samples}
			g, sleeps := newTestGovernor(limits, s)

			require.NoError(t, g.Admit(context.Background()))
			assert.Equal(t, tt.wantSleeps, *sleeps)
			assert.Equal(t, tt.wantCalls, s.calls)
		})
	}
}

func TestAdmit_SamplerErrorAdmits(t *testing.T) {
	s := &scriptedSampler{err: errors.New("no /proc")}
	g, sleeps := newTestGovernor(limits, s)

	require.NoError(t, g.Admit(context.Background()))
	assert.Zero(t, *sleeps)
}

func TestAdmit_Timeout(t *testing.T) {
	l := limits
	l.AdmitTimeout = time.Nanosecond
	s := &scriptedSampler{samples: []Usage{{MemoryPercent: 99, CPUPercent: 99}}}
	g, _ := newTestGovernor(l, s)
	time.Sleep(time.Millisecond)

	err := g.Admit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestAdmit_ContextCancelled(t *testing.T) {
	s := &scriptedSampler{samples: []Usage{{MemoryPercent: 99, CPUPercent: 99}}}
	g := New(limits, s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.Admit(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Defaults(t *testing.T) {
	g := New(types.ResourceLimits{MaxMemoryPercent: 50, MaxCPUPercent: 50}, nil, nil)
	assert.Equal(t, defaultPollInterval, g.pollInterval)
	assert.IsType(t, HostSampler{}, g.sampler)
}
