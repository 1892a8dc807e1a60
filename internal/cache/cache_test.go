// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docwalk/pkg/types"
)

func newMemCache(t *testing.T) (*Cache, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	c, err := New(fs, "/cache")
	require.NoError(t, err)
	return c, fs
}

func TestLookup_Miss(t *testing.T) {
	c, _ := newMemCache(t)

	text, ok, err := c.Lookup("deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestStore_Idempotent(t *testing.T) {
	c, _ := newMemCache(t)
	fp := types.Fingerprint("abc123")

	require.NoError(t, c.Store(fp, "hello world"))
	require.NoError(t, c.Store(fp, "hello world"))

	text, ok, err := c.Lookup(fp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello world", text)

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.Equal(t, []types.Fingerprint{fp}, entries)
}

func TestStore_LastWriteWins(t *testing.T) {
	c, _ := newMemCache(t)
	fp := types.Fingerprint("abc123")

	require.NoError(t, c.Store(fp, "first"))
	require.NoError(t, c.Store(fp, "second"))

	text, ok, err := c.Lookup(fp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", text)
}

func TestStore_EmptyTextIsAHit(t *testing.T) {
	c, _ := newMemCache(t)

	require.NoError(t, c.Store("empty", ""))

	text, ok, err := c.Lookup("empty")
	require.NoError(t, err)
	assert.True(t, ok, "an empty entry records a known failure and must still be a hit")
	assert.Empty(t, text)
}

func TestStore_LeavesNoTempFiles(t *testing.T) {
	c, fs := newMemCache(t)
	require.NoError(t, c.Store("abc", "text"))

	infos, err := afero.ReadDir(fs, "/cache")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "abc.txt", infos[0].Name())
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name        string
		dryRun      bool
		wantRemoved int
		wantLeft    []types.Fingerprint
	}{
		{
			name:        "removes exactly the orphan",
			wantRemoved: 1,
			wantLeft:    []types.Fingerprint{"A", "C"},
		},
		{
			name:        "dry run counts without deleting",
			dryRun:      true,
			wantRemoved: 1,
			wantLeft:    []types.Fingerprint{"A", "B", "C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newMemCache(t)
			for _, fp := range []types.Fingerprint{"A", "B", "C"} {
				require.NoError(t, c.Store(fp, "text "+string(fp)))
			}

			live := map[types.Fingerprint]struct{}{"A": {}, "C": {}}
			removed, err := c.Reconcile(live, tt.dryRun)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)

			entries, err := c.Entries()
			require.NoError(t, err)
			assert.Equal(t, tt.wantLeft, entries)
		})
	}
}

func TestReconcile_IgnoresForeignFiles(t *testing.T) {
	c, fs := newMemCache(t)
	require.NoError(t, c.Store("A", "a"))
	require.NoError(t, afero.WriteFile(fs, "/cache/README", []byte("keep"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/cache/.store-1.tmp", []byte("partial"), 0o644))

	removed, err := c.Reconcile(map[types.Fingerprint]struct{}{}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	exists, err := afero.Exists(fs, "/cache/README")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReconcile_SweepsStaleTempFiles(t *testing.T) {
	c, fs := newMemCache(t)
	require.NoError(t, c.Store("A", "a"))
	require.NoError(t, afero.WriteFile(fs, "/cache/.store-old.tmp", []byte("partial"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/cache/.store-new.tmp", []byte("writing"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, fs.Chtimes("/cache/.store-old.tmp", old, old))

	st, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.TempFiles)
	assert.Equal(t, 1, st.Entries)

	removed, err := c.Reconcile(map[types.Fingerprint]struct{}{"A": {}}, true)
	require.NoError(t, err)
	assert.Zero(t, removed)
	exists, _ := afero.Exists(fs, "/cache/.store-old.tmp")
	assert.True(t, exists, "dry run leaves temp files alone")

	removed, err = c.Reconcile(map[types.Fingerprint]struct{}{"A": {}}, false)
	require.NoError(t, err)
	assert.Zero(t, removed, "temp files are not counted as entries")

	exists, _ = afero.Exists(fs, "/cache/.store-old.tmp")
	assert.False(t, exists, "stale temp file is swept")
	exists, _ = afero.Exists(fs, "/cache/.store-new.tmp")
	assert.True(t, exists, "a temp file that may still be written is kept")
}

func TestNewOS_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")

	c, err := NewOS(dir)
	require.NoError(t, err)
	require.NoError(t, c.Store("fp", "on disk"))

	text, ok, err := c.Lookup("fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "on disk", text)
	assert.Equal(t, dir, c.Dir())
}

func TestStats(t *testing.T) {
	c, fs := newMemCache(t)
	require.NoError(t, c.Store("a", "some text"))
	require.NoError(t, c.Store("b", ""))
	require.NoError(t, c.Store("c", "  \n"))
	require.NoError(t, afero.WriteFile(fs, "/cache/notes.md", []byte("foreign"), 0o644))

	s, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Entries)
	assert.Equal(t, 2, s.Empty)
	assert.Equal(t, int64(len("some text")+len("  \n")), s.Bytes)
}
