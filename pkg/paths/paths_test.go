package paths

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolvesWorkspaceRoot(t *testing.T) {
	dir := t.TempDir()
	p, err := New(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, p.WorkspaceRoot())
	assert.Equal(t, filepath.Join(dir, "augent.toml"), p.ManifestPath())
	assert.Equal(t, filepath.Join(dir, "augent.lock"), p.LockfilePath())
	assert.Equal(t, filepath.Join(dir, "augent.index"), p.IndexPath())
	assert.Equal(t, filepath.Join(dir, ".augent"), p.BundleDir())
}

func TestNewEmptyRootUsesCwd(t *testing.T) {
	p, err := New("")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p.WorkspaceRoot()))
}

func TestLockPathIsOutsideWorkspace(t *testing.T) {
	p := NewWithDirs("/home/user/project", "/tmp/cache", "/tmp/state")

	lock := p.LockPath()
	assert.True(t, strings.HasPrefix(lock, "/tmp/state/"))
	assert.False(t, strings.HasPrefix(lock, p.WorkspaceRoot()))
	assert.True(t, strings.HasSuffix(lock, ".lock"))
}

func TestLockPathDistinctPerWorkspace(t *testing.T) {
	a := NewWithDirs("/home/user/one", "/tmp/cache", "/tmp/state")
	b := NewWithDirs("/home/user/two", "/tmp/cache", "/tmp/state")
	assert.NotEqual(t, a.LockPath(), b.LockPath())
}
