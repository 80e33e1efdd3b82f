package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asyrjasalo/augent/pkg/filesystem"
	"github.com/asyrjasalo/augent/pkg/types"
)

func TestDeclarationValidate(t *testing.T) {
	tests := []struct {
		name    string
		decl    Declaration
		wantErr bool
	}{
		{"directory source", Declaration{Name: "a", Path: "/bundles/a"}, false},
		{"remote source", Declaration{Name: "a", Origin: "https://example.com/r.git", Ref: "main"}, false},
		{"missing name", Declaration{Path: "/bundles/a"}, true},
		{"no source", Declaration{Name: "a"}, true},
		{"both sources", Declaration{Name: "a", Path: "/x", Origin: "https://example.com/r.git"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decl.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeclarationSource(t *testing.T) {
	dir := Declaration{Name: "a", Path: "/bundles/a"}.Source()
	assert.Equal(t, types.SourceDirectory, dir.Kind)
	assert.Equal(t, "/bundles/a", dir.Path)

	remote := Declaration{Name: "b", Origin: "https://example.com/r.git", Ref: "v1", Subpath: "tools"}.Source()
	assert.Equal(t, types.SourceRemote, remote.Kind)
	assert.Equal(t, "v1", remote.Ref)
	assert.Equal(t, "tools", remote.Subpath)
}

func TestManifestAddReplacesByName(t *testing.T) {
	var m Manifest
	m.Add(Declaration{Name: "a", Path: "/old"})
	m.Add(Declaration{Name: "b", Path: "/b"})
	m.Add(Declaration{Name: "a", Path: "/new"})

	require.Len(t, m.Bundles, 2)
	assert.Equal(t, "/new", m.Find("a").Path)
	// Replacement keeps the original declaration position.
	assert.Equal(t, "a", m.Bundles[0].Name)
}

func TestManifestRemove(t *testing.T) {
	var m Manifest
	m.Add(Declaration{Name: "a", Path: "/a"})

	assert.True(t, m.Remove("a"))
	assert.False(t, m.Remove("a"))
	assert.Nil(t, m.Find("a"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fsys := filesystem.NewOS()
	path := filepath.Join(t.TempDir(), "augent.toml")

	m := &Manifest{Bundles: []Declaration{
		{Name: "a", Path: "/bundles/a"},
		{Name: "b", Origin: "https://example.com/r.git", Ref: "main"},
	}}
	require.NoError(t, m.Save(fsys, path))

	loaded, err := Load(fsys, path)
	require.NoError(t, err)
	assert.Equal(t, m.Bundles, loaded.Bundles)
}

func TestLoadMissingIsEmpty(t *testing.T) {
	loaded, err := Load(filesystem.NewOS(), filepath.Join(t.TempDir(), "augent.toml"))
	require.NoError(t, err)
	assert.Empty(t, loaded.Bundles)
}

func TestLoadRejectsInvalidDeclaration(t *testing.T) {
	fsys := filesystem.NewOS()
	path := filepath.Join(t.TempDir(), "augent.toml")
	require.NoError(t, fsys.WriteFile(path, []byte("[[bundles]]\nname = \"broken\"\n"), 0644))

	_, err := Load(fsys, path)
	assert.Error(t, err)
}

func TestParseBundleManifest(t *testing.T) {
	bm, err := ParseBundleManifest([]byte(
		"name = \"tools\"\ndescription = \"dev tooling\"\n\n" +
			"[[dependencies]]\nname = \"base\"\npath = \"../base\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "tools", bm.Name)
	require.Len(t, bm.Dependencies, 1)

	deps := bm.DependenciesOf("/bundles/tools")
	require.Len(t, deps, 1)
	assert.Equal(t, "/bundles/base", deps[0].Source.Path)
}
