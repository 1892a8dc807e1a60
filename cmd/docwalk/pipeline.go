// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdiddy/docwalk/internal/cache"
	"github.com/pdiddy/docwalk/internal/extract"
	"github.com/pdiddy/docwalk/internal/governor"
	"github.com/pdiddy/docwalk/internal/ledger"
	"github.com/pdiddy/docwalk/internal/walker"
	"github.com/pdiddy/docwalk/pkg/types"
)

// pipeline wires the cache, extraction engine, governor and walker for
// one root, plus the optional run ledger.
type pipeline struct {
	cfg    types.Config
	cache  *cache.Cache
	walker *walker.Walker
	ledger *ledger.Ledger
	logger *slog.Logger
}

// newPipeline builds the full extraction pipeline from cfg.
func newPipeline(ctx context.Context, cfg types.Config, logger *slog.Logger) (*pipeline, error) {
	engine, err := extract.NewFromConfig(ctx, cfg.Extraction, loadedSecrets, logger)
	if err != nil {
		return nil, err
	}
	return assemble(cfg, engine, logger)
}

// newOfflinePipeline builds a pipeline that never extracts. It serves
// commands that only fingerprint files and inspect the cache.
func newOfflinePipeline(cfg types.Config, logger *slog.Logger) (*pipeline, error) {
	return assemble(cfg, extract.NewEngine(extract.NewNativeExtractor(), extract.WithLogger(logger)), logger)
}

func assemble(cfg types.Config, engine walker.TextExtractor, logger *slog.Logger) (*pipeline, error) {
	c, err := cache.NewOS(cfg.Walk.CacheDir)
	if err != nil {
		return nil, err
	}
	w, err := walker.New(cfg, walker.Deps{
		Cache:    c,
		Engine:   engine,
		Governor: governor.New(cfg.Limits, governor.HostSampler{}, logger),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	p := &pipeline{cfg: cfg, cache: c, walker: w, logger: logger}
	if cfg.Ledger.Path != "" {
		l, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		p.ledger = l
	}
	return p, nil
}

// run executes one walk and records its summary in the ledger, including
// the partial summary of an interrupted run. A ledger failure is logged.
func (p *pipeline) run(ctx context.Context, mode types.ReconcileMode) (*walker.Result, error) {
	res, err := p.walker.Run(ctx, mode)
	if res != nil && p.ledger != nil {
		// A cancelled run is still recorded, so the write gets its own context.
		id, lerr := p.ledger.Record(context.WithoutCancel(ctx), res.Summary)
		if lerr != nil {
			p.logger.Warn("recording run failed", "error", lerr)
		} else {
			p.logger.Debug("run recorded", "id", id)
		}
	}
	return res, err
}

// Close releases the ledger.
func (p *pipeline) Close() error {
	if p.ledger == nil {
		return nil
	}
	return p.ledger.Close()
}

// openLedger opens the configured ledger for read-only commands.
func openLedger(cfg types.Config) (*ledger.Ledger, error) {
	if cfg.Ledger.Path == "" {
		return nil, fmt.Errorf("no ledger configured: set ledger.path or --ledger")
	}
	return ledger.Open(cfg.Ledger.Path)
}
