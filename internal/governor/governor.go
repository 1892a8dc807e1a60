// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package governor gates new extraction work on host memory and CPU load.
// Under sustained pressure the pipeline slows down instead of failing.
package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/pdiddy/docwalk/pkg/types"
)

// ErrResourceExhausted is returned by Admit when AdmitTimeout elapses
// before load drops under the thresholds.
var ErrResourceExhausted = errors.New("resources exhausted")

const defaultPollInterval = 500 * time.Millisecond

// Usage is one sample of host utilisation, in percent.
type Usage struct {
	MemoryPercent float64
	CPUPercent    float64
}

// Sampler reads current host utilisation.
type Sampler interface {
	Sample(ctx context.Context) (Usage, error)
}

// HostSampler samples the local machine through gopsutil.
type HostSampler struct{}

// Sample returns system-wide memory and CPU utilisation. CPU is measured
// since the previous call, so the first sample after startup may be coarse.
func (HostSampler) Sample(ctx context.Context) (Usage, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("sampling memory: %w", err)
	}
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Usage{}, fmt.Errorf("sampling cpu: %w", err)
	}
	u := Usage{MemoryPercent: vm.UsedPercent}
	if len(pct) > 0 {
		u.CPUPercent = pct[0]
	}
	return u, nil
}

// Governor admits work while memory and CPU are under their limits.
type Governor struct {
	sampler      Sampler
	maxMemory    float64
	maxCPU       float64
	timeout      time.Duration
	pollInterval time.Duration
	logger       *slog.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Governor from the run's resource limits.
func New(limits types.ResourceLimits, sampler Sampler, logger *slog.Logger) *Governor {
	if sampler == nil {
		sampler = HostSampler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	poll := limits.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Governor{
		sampler:      sampler,
		maxMemory:    limits.MaxMemoryPercent,
		maxCPU:       limits.MaxCPUPercent,
		timeout:      limits.AdmitTimeout,
		pollInterval: poll,
		logger:       logger,
		sleep:        sleepCtx,
	}
}

// Admit returns once both memory and CPU are under their thresholds. It
// re-samples every poll interval while they are not. A failed sample
// admits the caller. With a timeout configured, Admit gives up with
// ErrResourceExhausted.
func (g *Governor) Admit(ctx context.Context) error {
	var deadline time.Time
	if g.timeout > 0 {
		deadline = time.Now().Add(g.timeout)
	}

	for waited := false; ; waited = true {
		u, err := g.sampler.Sample(ctx)
		if err != nil {
			g.logger.Debug("resource sample failed, admitting", "error", err)
			return nil
		}
		if g.under(u) {
			if waited {
				g.logger.Debug("resource pressure cleared", "memory", u.MemoryPercent, "cpu", u.CPUPercent)
			}
			return nil
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return fmt.Errorf("%w: memory %.1f%% (max %.1f%%), cpu %.1f%% (max %.1f%%)",
				ErrResourceExhausted, u.MemoryPercent, g.maxMemory, u.CPUPercent, g.maxCPU)
		}
		if !waited {
			g.logger.Debug("resource pressure, waiting", "memory", u.MemoryPercent, "cpu", u.CPUPercent)
		}
		if err := g.sleep(ctx, g.pollInterval); err != nil {
			return err
		}
	}
}

func (g *Governor) under(u Usage) bool {
	return u.MemoryPercent < g.maxMemory && u.CPUPercent < g.maxCPU
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
