package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/require"
)

// setCacheHome points XDG_CACHE_HOME at a fresh temp dir so tests never touch the user's
// real cache. xdg resolves its paths at init, so it must re-read the environment here and
// again after the env is restored.
func setCacheHome(t *testing.T) {
	t.Helper()

	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	xdg.Reload()
}

func TestCache_Open(t *testing.T) {
	as := require.New(t)

	setCacheHome(t)

	tempDir := t.TempDir()
	xdgPrefix, err := xdg.CacheFile("")
	as.NoError(err)

	cache, err := Open(tempDir, false)
	as.NoError(err)

	path := cache.db.Path()
	as.True(
		strings.HasPrefix(path, xdgPrefix),
		"db path %s does not carry the xdg cache file prefix %s",
		path, xdgPrefix,
	)

	as.NoError(cache.Close())

	_, err = os.Stat(path)
	as.NoError(err, "db path %s should still exist after closing the cache", path)
}

func TestCache_UnchangedAfterUpdate(t *testing.T) {
	as := require.New(t)

	setCacheHome(t)

	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "Program.cs")
	as.NoError(os.WriteFile(path, []byte("class Program { }\n"), 0o644))

	cache, err := Open(tempDir, true)
	as.NoError(err)

	t.Cleanup(func() {
		as.NoError(cache.Close())
	})

	info, err := os.Stat(path)
	as.NoError(err)

	// unknown paths are never unchanged
	as.False(cache.Unchanged(path, info))

	as.NoError(cache.Update(map[string]os.FileInfo{path: info}))
	as.True(cache.Unchanged(path, info))

	// a different size invalidates the entry regardless of mod time
	as.NoError(os.WriteFile(path, []byte("class Program { int X; }\n"), 0o644))

	info, err = os.Stat(path)
	as.NoError(err)
	as.False(cache.Unchanged(path, info))
}

func TestCache_Clear(t *testing.T) {
	as := require.New(t)

	setCacheHome(t)

	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "Program.cs")
	as.NoError(os.WriteFile(path, []byte("class Program { }\n"), 0o644))

	info, err := os.Stat(path)
	as.NoError(err)

	cache, err := Open(tempDir, true)
	as.NoError(err)
	as.NoError(cache.Update(map[string]os.FileInfo{path: info}))
	as.NoError(cache.Close())

	// entries survive a normal reopen
	cache, err = Open(tempDir, false)
	as.NoError(err)
	as.True(cache.Unchanged(path, info))
	as.NoError(cache.Close())

	// and are wiped by a clearing reopen
	cache, err = Open(tempDir, true)
	as.NoError(err)
	as.False(cache.Unchanged(path, info))
	as.NoError(cache.Close())
}

func TestCache_EmptyUpdateIsNoop(t *testing.T) {
	as := require.New(t)

	setCacheHome(t)

	cache, err := Open(t.TempDir(), true)
	as.NoError(err)

	t.Cleanup(func() {
		as.NoError(cache.Close())
	})

	as.NoError(cache.Update(nil))
}
