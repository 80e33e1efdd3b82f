package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asyrjasalo/augent/pkg/filesystem"
	"github.com/asyrjasalo/augent/pkg/paths"
	"github.com/asyrjasalo/augent/pkg/types"
)

// Workspace is a throwaway on-disk workspace with isolated cache and
// state directories.
type Workspace struct {
	FS    types.FS
	Paths *paths.Paths
	Root  string

	// BundleRoot is a scratch directory for authoring test bundles,
	// outside the workspace itself.
	BundleRoot string
}

// NewWorkspace creates a temp workspace for integration-style tests.
func NewWorkspace(t *testing.T) *Workspace {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "workspace")
	fsys := filesystem.NewOS()
	require.NoError(t, fsys.MkdirAll(root, 0755))

	return &Workspace{
		FS: fsys,
		Paths: paths.NewWithDirs(root,
			filepath.Join(base, "cache"),
			filepath.Join(base, "state")),
		Root:       root,
		BundleRoot: filepath.Join(base, "bundles"),
	}
}

// WriteFile writes a file under dir, creating parent directories.
func (w *Workspace) WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, w.FS.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, w.FS.WriteFile(path, []byte(content), 0644))
	return path
}

// Bundle authors a bundle directory under BundleRoot with the given
// files. A missing bundle.toml entry gets a minimal one generated.
func (w *Workspace) Bundle(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(w.BundleRoot, name)
	if _, ok := files["bundle.toml"]; !ok {
		w.WriteFile(t, dir, "bundle.toml", "name = \""+name+"\"\n")
	}
	for rel, content := range files {
		w.WriteFile(t, dir, rel, content)
	}
	return dir
}

// EnablePlatform creates a platform marker directory in the workspace.
func (w *Workspace) EnablePlatform(t *testing.T, marker string) {
	t.Helper()
	require.NoError(t, w.FS.MkdirAll(filepath.Join(w.Root, marker), 0755))
}

// ReadOutput reads a workspace-relative file.
func (w *Workspace) ReadOutput(t *testing.T, rel string) string {
	t.Helper()
	data, err := w.FS.ReadFile(filepath.Join(w.Root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// Exists reports whether a workspace-relative path exists.
func (w *Workspace) Exists(rel string) bool {
	_, err := w.FS.Stat(filepath.Join(w.Root, filepath.FromSlash(rel)))
	return err == nil
}
