// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docwalk/pkg/types"
)

func TestWatchFilter(t *testing.T) {
	root := t.TempDir()
	cfg := types.DefaultConfig()
	cfg.Walk.Root = root
	cfg.Walk.CacheDir = filepath.Join(t.TempDir(), "cache")
	cfg.Ledger.Path = ""

	p, err := newOfflinePipeline(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer p.Close()

	ledgerPath := filepath.Join(root, "docwalk.db")
	outPath := filepath.Join(root, "export.md")
	keep := watchFilter(p.walker, outPath, ledgerPath, ledgerPath+"-wal", ledgerPath+"-shm", "-", "")

	tests := []struct {
		path string
		want bool
	}{
		{path: filepath.Join(root, "report.pdf"), want: true},
		{path: filepath.Join(root, "sub", "Slides.PPTX"), want: true},
		{path: filepath.Join(root, "notes.md"), want: true},
		{path: ledgerPath, want: false},
		{path: ledgerPath + "-wal", want: false},
		{path: ledgerPath + "-shm", want: false},
		{path: outPath, want: false},
		{path: filepath.Join(root, "records.jsonl"), want: false},
		{path: filepath.Join(root, "image.png"), want: false},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.want, keep(tt.path))
		})
	}
}
