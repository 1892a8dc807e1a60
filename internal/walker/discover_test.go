// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package walker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docwalk/internal/cache"
	"github.com/pdiddy/docwalk/pkg/types"
)

func TestAccept(t *testing.T) {
	h := newHarness(t, t.TempDir(), nil)
	h.w.cfg.Walk.MaxFileSize = 10_000

	tests := []struct {
		name string
		d    Discovered
		want bool
	}{
		{name: "allowed pdf", d: Discovered{Path: "/r/a.pdf", Size: 2048}, want: true},
		{name: "uppercase extension", d: Discovered{Path: "/r/A.PDF", Size: 2048}, want: true},
		{name: "exactly min size", d: Discovered{Path: "/r/a.docx", Size: 250}, want: true},
		{name: "below min size", d: Discovered{Path: "/r/d.pdf", Size: 10}, want: false},
		{name: "disallowed extension", d: Discovered{Path: "/r/c.xyz", Size: 2048}, want: false},
		{name: "no extension", d: Discovered{Path: "/r/Makefile", Size: 2048}, want: false},
		{name: "over max size", d: Discovered{Path: "/r/huge.pdf", Size: 10_001}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.w.Accept(tt.d))
		})
	}

	h.w.cfg.Walk.MaxFileSize = 0
	assert.True(t, h.w.Accept(Discovered{Path: "/r/huge.pdf", Size: 1 << 40}), "zero disables the cap")

	assert.True(t, h.w.AllowedExtension("/gone/REPORT.PDF"), "removed files are judged by name alone")
	assert.False(t, h.w.AllowedExtension("/r/docwalk.db-wal"))
}

func TestDiscover_SkipsIgnoredTrees(t *testing.T) {
	root := t.TempDir()
	writeSized(t, root, "a.pdf", 300)
	writeSized(t, root, filepath.Join("sub", "b.docx"), 300)
	writeSized(t, root, filepath.Join(".git", "objects", "x.pdf"), 300)
	writeSized(t, root, filepath.Join("node_modules", "pkg", "readme.md"), 300)
	writeSized(t, root, filepath.Join("drafts", "wip.pdf"), 300)
	writeSized(t, root, filepath.Join("cache_files", "abc.txt"), 300)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("drafts/\n"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "a.pdf"), filepath.Join(root, "link.pdf")))

	c, err := cache.NewOS(filepath.Join(root, "cache_files"))
	require.NoError(t, err)
	cfg := testConfig(root)
	cfg.Walk.CacheDir = c.Dir()
	w, err := New(cfg, Deps{Cache: c, Engine: &countingEngine{}, Logger: discard})
	require.NoError(t, err)

	found, err := w.Discover(context.Background())
	require.NoError(t, err)

	var rel []string
	for _, d := range found {
		r, err := filepath.Rel(w.Root(), d.Path)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
		assert.Equal(t, int64(300), d.Size)
	}
	sort.Strings(rel)
	assert.Equal(t, []string{"a.pdf", "sub/b.docx"}, rel)
}

func TestProcessedSet(t *testing.T) {
	s := newProcessedSet()
	s.Add("/b", false)
	s.Add("/a", true)
	s.Add("/b", false)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"/a", "/b"}, s.Paths())
	assert.True(t, s.Empty("/a"))
	assert.False(t, s.Empty("/b"))
}

func TestClean(t *testing.T) {
	root := t.TempDir()
	writeSized(t, root, "a.md", 500)
	writeSized(t, root, "b.md", 500)
	h := newHarness(t, root, map[string]string{"a.md": "alpha", "b.md": "beta"})

	res, err := h.w.Run(context.Background(), types.ReconcileSkip)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	require.NoError(t, os.Remove(filepath.Join(root, "b.md")))

	n, err := h.w.Clean(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	entries, err := h.cache.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2, "dry run removes nothing")

	n, err = h.w.Clean(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	entries, err = h.cache.Entries()
	require.NoError(t, err)
	assert.Equal(t, []types.Fingerprint{recordsByName(res.Records)["a.md"].Fingerprint}, entries)
	assert.Equal(t, 2, h.primary.calls["a.md"]+h.primary.calls["b.md"], "clean never extracts")
}

func TestFailedFiles(t *testing.T) {
	root := t.TempDir()
	writeSized(t, root, "a.md", 500)
	writeSized(t, root, "b.md", 500)
	h := newHarness(t, root, map[string]string{"a.md": "alpha"})

	_, err := h.w.Run(context.Background(), types.ReconcileSkip)
	require.NoError(t, err)

	failed, err := h.w.FailedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(h.w.Root(), "b.md")}, failed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	failed, err = h.w.FailedFiles(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, failed, "a partial report is not returned")
}
