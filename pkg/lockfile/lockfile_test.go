package lockfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/filesystem"
	"github.com/asyrjasalo/augent/pkg/resolver"
	"github.com/asyrjasalo/augent/pkg/types"
)

func resolvedFixture() []resolver.Resolved {
	return []resolver.Resolved{
		{
			Bundle: types.Bundle{Name: "dep"},
			Source: types.BundleSource{Kind: types.SourceDirectory, Path: "/bundles/dep", Revision: "r1"},
			Snapshot: &types.Snapshot{
				Identity: "dir:/bundles/dep",
				Revision: "r1",
				Files: []types.SnapshotFile{
					{Path: "commands/a.md", Hash: "h1"},
					{Path: "commands/b.md", Hash: "h2"},
				},
			},
			Hash: "hash-dep",
		},
		{
			Bundle: types.Bundle{
				Name:         "main",
				Dependencies: []types.Dependency{{Name: "dep"}},
			},
			Source: types.BundleSource{Kind: types.SourceDirectory, Path: "/bundles/main", Revision: "r2"},
			Snapshot: &types.Snapshot{
				Identity: "dir:/bundles/main",
				Revision: "r2",
				Files:    []types.SnapshotFile{{Path: "AGENTS.md", Hash: "h3"}},
			},
			Hash: "hash-main",
		},
		{
			Bundle:   types.Bundle{Name: resolver.WorkspaceBundleName},
			Source:   types.BundleSource{Kind: types.SourceDirectory, Path: "/ws/.augent", Revision: "r3"},
			Snapshot: &types.Snapshot{Identity: "dir:/ws/.augent", Revision: "r3"},
			Hash:     "hash-ws",
		},
	}
}

func TestGeneratePreservesOrderAndDeps(t *testing.T) {
	lf := Generate(resolvedFixture())

	require.Len(t, lf.Bundles, 3)
	assert.Equal(t, types.LockfileVersion, lf.Version)
	assert.Equal(t, "dep", lf.Bundles[0].Name)
	assert.Equal(t, "main", lf.Bundles[1].Name)
	assert.Equal(t, resolver.WorkspaceBundleName, lf.Bundles[2].Name)
	assert.Equal(t, []string{"dep"}, lf.Bundles[1].Deps)
	assert.Equal(t, []string{"commands/a.md", "commands/b.md"}, lf.Bundles[0].Files)
	assert.Equal(t, "r1", lf.Bundles[0].Source.Revision)
}

func TestMarshalDeterministic(t *testing.T) {
	a, err := Marshal(Generate(resolvedFixture()))
	require.NoError(t, err)
	b, err := Marshal(Generate(resolvedFixture()))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fsys := filesystem.NewOS()
	path := filepath.Join(t.TempDir(), "augent.lock")
	lf := Generate(resolvedFixture())

	require.NoError(t, Save(fsys, path, lf))
	loaded, err := Load(fsys, path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, lf.Bundles, loaded.Bundles)
}

func TestLoadMissingIsNil(t *testing.T) {
	loaded, err := Load(filesystem.NewOS(), filepath.Join(t.TempDir(), "augent.lock"))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestValidateFrozenMatches(t *testing.T) {
	assert.NoError(t, ValidateFrozen(Generate(resolvedFixture()), Generate(resolvedFixture())))
}

func TestValidateFrozenNoLockfile(t *testing.T) {
	err := ValidateFrozen(nil, Generate(resolvedFixture()))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFrozenMismatch))
}

func TestValidateFrozenRevisionDrift(t *testing.T) {
	existing := Generate(resolvedFixture())
	fresh := Generate(resolvedFixture())
	fresh.Bundles[1].Source.Revision = "r2-new"
	fresh.Bundles[1].Hash = "hash-main-new"

	err := ValidateFrozen(existing, fresh)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFrozenMismatch))
	assert.Contains(t, err.Error(), "main")
}

func TestValidateFrozenBundleSetChange(t *testing.T) {
	existing := Generate(resolvedFixture())
	fresh := Generate(resolvedFixture()[1:])

	err := ValidateFrozen(existing, fresh)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFrozenMismatch))
}
