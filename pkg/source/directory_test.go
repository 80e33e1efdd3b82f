package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asyrjasalo/augent/pkg/filesystem"
	"github.com/asyrjasalo/augent/pkg/types"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestFetchReadsTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"bundle.toml":      "name = \"a\"\n",
		"commands/x.md":    "x",
		"nested/deep/y.md": "y",
		".git/config":      "ignored",
		"augent.lock":      "ignored",
		"augent.index":     "ignored",
	})

	f := NewDirectoryFetcher(filesystem.NewOS())
	result, err := f.Fetch(context.Background(),
		types.BundleSource{Kind: types.SourceDirectory, Path: root})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Revision)
	assert.Equal(t, []byte("x"), result.Files["commands/x.md"])
	assert.Equal(t, []byte("y"), result.Files["nested/deep/y.md"])
	assert.NotContains(t, result.Files, ".git/config")
	assert.NotContains(t, result.Files, "augent.lock")
	assert.NotContains(t, result.Files, "augent.index")
}

func TestFetchRevisionTracksContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"commands/x.md": "v1"})
	f := NewDirectoryFetcher(filesystem.NewOS())
	src := types.BundleSource{Kind: types.SourceDirectory, Path: root}

	first, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	again, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, first.Revision, again.Revision, "unchanged tree keeps its revision")

	writeTree(t, root, map[string]string{"commands/x.md": "v2"})
	changed, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision, changed.Revision)
}

func TestFetchMissingDirectory(t *testing.T) {
	f := NewDirectoryFetcher(filesystem.NewOS())
	_, err := f.Fetch(context.Background(),
		types.BundleSource{Kind: types.SourceDirectory, Path: filepath.Join(t.TempDir(), "absent")})
	assert.Error(t, err)
}

func TestFetchRejectsWrongKind(t *testing.T) {
	f := NewDirectoryFetcher(filesystem.NewOS())
	_, err := f.Fetch(context.Background(),
		types.BundleSource{Kind: types.SourceRemote, Origin: "https://example.com/r.git"})
	assert.Error(t, err)
}

func TestEmptyResultRevisionStable(t *testing.T) {
	assert.Equal(t, EmptyResult().Revision, EmptyResult().Revision)
	assert.Empty(t, EmptyResult().Files)
}

func TestDiscoverBundlesRootIsBundle(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"bundle.toml": "name = \"solo\"\n"})

	found, err := DiscoverBundles(filesystem.NewOS(), root)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Base(root), found[0].Name)
	assert.Equal(t, root, found[0].Source.Path)
}

func TestDiscoverBundlesSubdirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"alpha/bundle.toml":   "name = \"alpha\"\n",
		"beta/bundle.toml":    "name = \"beta\"\n",
		"notes/readme.md":     "not a bundle",
		".hidden/bundle.toml": "name = \"hidden\"\n",
	})

	found, err := DiscoverBundles(filesystem.NewOS(), root)
	require.NoError(t, err)
	names := make([]string, len(found))
	for i, b := range found {
		names[i] = b.Name
	}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
}
