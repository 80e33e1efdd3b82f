package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/manifest"
	"github.com/asyrjasalo/augent/pkg/resolver"
	"github.com/asyrjasalo/augent/pkg/testutil"
	"github.com/asyrjasalo/augent/pkg/workspace"
)

func newTestRunner(t *testing.T, ws *testutil.Workspace) *Runner {
	t.Helper()
	r, err := NewRunner(ws.FS, ws.Paths, nil, nil)
	require.NoError(t, err)
	return r
}

func install(t *testing.T, r *Runner, opts InstallOptions) *InstallResult {
	t.Helper()
	result, err := r.Install(context.Background(), opts)
	require.NoError(t, err)
	return result
}

func TestInstallBundle(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.EnablePlatform(t, ".claude")
	dir := ws.Bundle(t, "alpha", map[string]string{
		"commands/debug.md": "debug instructions",
	})
	r := newTestRunner(t, ws)

	result := install(t, r, InstallOptions{
		Add: []manifest.Declaration{{Name: "alpha", Path: dir}},
	})

	assert.Equal(t, []string{"alpha", resolver.WorkspaceBundleName}, result.Bundles)
	assert.Equal(t, []string{"claude"}, result.Platforms)
	assert.Equal(t, "debug instructions", ws.ReadOutput(t, ".claude/commands/debug.md"))
	assert.True(t, ws.Exists("augent.toml"))
	assert.True(t, ws.Exists("augent.lock"))
	assert.True(t, ws.Exists("augent.index"))
}

func TestInstallDryRunMutatesNothing(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.EnablePlatform(t, ".claude")
	dir := ws.Bundle(t, "alpha", map[string]string{"commands/x.md": "x"})
	r := newTestRunner(t, ws)

	result := install(t, r, InstallOptions{
		Add:    []manifest.Declaration{{Name: "alpha", Path: dir}},
		DryRun: true,
	})

	assert.True(t, result.DryRun)
	assert.Equal(t, []string{"alpha", resolver.WorkspaceBundleName}, result.Bundles)
	assert.False(t, ws.Exists(".claude/commands/x.md"))
	assert.False(t, ws.Exists("augent.toml"))
	assert.False(t, ws.Exists("augent.lock"))
}

func TestInstallResolvesDependencyChain(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.EnablePlatform(t, ".claude")
	lib := ws.Bundle(t, "lib", map[string]string{"commands/lib.md": "lib cmd"})
	app := ws.Bundle(t, "app", map[string]string{
		"bundle.toml":     "name = \"app\"\n\n[[dependencies]]\nname = \"lib\"\npath = \"" + lib + "\"\n",
		"commands/app.md": "app cmd",
	})
	r := newTestRunner(t, ws)

	result := install(t, r, InstallOptions{
		Add: []manifest.Declaration{{Name: "app", Path: app}},
	})

	assert.Equal(t, []string{"lib", "app", resolver.WorkspaceBundleName}, result.Bundles)
	assert.Equal(t, "lib cmd", ws.ReadOutput(t, ".claude/commands/lib.md"))
	assert.Equal(t, "app cmd", ws.ReadOutput(t, ".claude/commands/app.md"))

	rows, err := r.List()
	require.NoError(t, err)
	byName := make(map[string]BundleInfo)
	for _, row := range rows {
		byName[row.Name] = row
	}
	assert.True(t, byName["app"].Direct)
	assert.False(t, byName["lib"].Direct)
}

func TestInstallAfterCacheClean(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.EnablePlatform(t, ".claude")
	dir := ws.Bundle(t, "alpha", map[string]string{"commands/x.md": "x"})
	r := newTestRunner(t, ws)

	install(t, r, InstallOptions{Add: []manifest.Declaration{{Name: "alpha", Path: dir}}})
	require.NoError(t, r.Store().Clear())

	// A cleaned cache is routine maintenance: the next install
	// repopulates it instead of failing on the missing snapshot.
	result := install(t, r, InstallOptions{})
	assert.Equal(t, []string{"alpha", resolver.WorkspaceBundleName}, result.Bundles)
	assert.Equal(t, "x", ws.ReadOutput(t, ".claude/commands/x.md"))
}

func TestInstallCycleLeavesWorkspaceUntouched(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.EnablePlatform(t, ".claude")
	aDir := filepath.Join(ws.BundleRoot, "a")
	bDir := filepath.Join(ws.BundleRoot, "b")
	ws.Bundle(t, "a", map[string]string{
		"bundle.toml":   "name = \"a\"\n\n[[dependencies]]\nname = \"b\"\npath = \"" + bDir + "\"\n",
		"commands/a.md": "a",
	})
	ws.Bundle(t, "b", map[string]string{
		"bundle.toml":   "name = \"b\"\n\n[[dependencies]]\nname = \"a\"\npath = \"" + aDir + "\"\n",
		"commands/b.md": "b",
	})
	r := newTestRunner(t, ws)

	_, err := r.Install(context.Background(), InstallOptions{
		Add: []manifest.Declaration{{Name: "a", Path: aDir}},
	})

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCircularDependency))
	assert.False(t, ws.Exists(".claude/commands/a.md"))
	assert.False(t, ws.Exists("augent.lock"))
	assert.False(t, ws.Exists("augent.toml"))
	assert.False(t, ws.Exists("augent.index"))
}

func TestInstallFrozenWithoutLockfile(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.EnablePlatform(t, ".claude")
	dir := ws.Bundle(t, "alpha", map[string]string{"commands/x.md": "x"})
	r := newTestRunner(t, ws)

	_, err := r.Install(context.Background(), InstallOptions{
		Add:    []manifest.Declaration{{Name: "alpha", Path: dir}},
		Frozen: true,
	})

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFrozenMismatch))
	assert.False(t, ws.Exists(".claude/commands/x.md"))
	assert.False(t, ws.Exists("augent.lock"))
}

func TestInstallFrozenStableWorkspace(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.EnablePlatform(t, ".claude")
	dir := ws.Bundle(t, "alpha", map[string]string{"commands/x.md": "x"})
	r := newTestRunner(t, ws)

	install(t, r, InstallOptions{Add: []manifest.Declaration{{Name: "alpha", Path: dir}}})
	before := ws.ReadOutput(t, "augent.lock")

	install(t, r, InstallOptions{Frozen: true})
	assert.Equal(t, before, ws.ReadOutput(t, "augent.lock"))
}

func TestInstallFrozenDetectsDrift(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.EnablePlatform(t, ".claude")
	dir := ws.Bundle(t, "alpha", map[string]string{"commands/x.md": "v1"})
	r := newTestRunner(t, ws)

	install(t, r, InstallOptions{Add: []manifest.Declaration{{Name: "alpha", Path: dir}}})
	lockBefore := ws.ReadOutput(t, "augent.lock")

	// Upstream content changes under the same declaration.
	ws.WriteFile(t, dir, "commands/x.md", "v2")

	_, err := r.Install(context.Background(), InstallOptions{Frozen: true})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFrozenMismatch))

	// Nothing moved: old artifact and old lockfile survive.
	assert.Equal(t, "v1", ws.ReadOutput(t, ".claude/commands/x.md"))
	assert.Equal(t, lockBefore, ws.ReadOutput(t, "augent.lock"))
}

func TestInstallAdoptsLocalEdits(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.EnablePlatform(t, ".claude")
	dir := ws.Bundle(t, "alpha", map[string]string{"commands/x.md": "pristine"})
	r := newTestRunner(t, ws)

	install(t, r, InstallOptions{Add: []manifest.Declaration{{Name: "alpha", Path: dir}}})

	// A local edit to the installed artifact.
	ws.WriteFile(t, ws.Root, ".claude/commands/x.md", "edited")

	result := install(t, r, InstallOptions{})
	assert.Equal(t, []string{"commands/x.md"}, result.Adopted)

	// The edit survives the reinstall via the workspace bundle.
	assert.Equal(t, "edited", ws.ReadOutput(t, ".claude/commands/x.md"))
	assert.Equal(t, "edited", ws.ReadOutput(t, ".augent/commands/x.md"))

	// A further install is stable: nothing left to adopt.
	result = install(t, r, InstallOptions{})
	assert.Empty(t, result.Adopted)
	assert.Equal(t, "edited", ws.ReadOutput(t, ".claude/commands/x.md"))
}

func TestInstallNoWaitOnHeldLock(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.EnablePlatform(t, ".claude")
	r := newTestRunner(t, ws)

	held, err := workspace.AcquireLock(ws.Paths, false)
	require.NoError(t, err)
	defer held.Release()

	_, err = r.Install(context.Background(), InstallOptions{NoWait: true})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrLockContention))
}

func TestDiscoverSubpath(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	ws.Bundle(t, "alpha", map[string]string{"commands/x.md": "x"})
	ws.Bundle(t, "beta", map[string]string{"commands/y.md": "y"})
	r := newTestRunner(t, ws)

	decls, err := r.Discover(ws.BundleRoot, "alpha")
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "alpha", decls[0].Name)

	decls, err = r.Discover(ws.BundleRoot, "")
	require.NoError(t, err)
	assert.Len(t, decls, 2)

	_, err = r.Discover(ws.BundleRoot, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSourceResolution))
}
