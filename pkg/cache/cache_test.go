package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/filesystem"
	"github.com/asyrjasalo/augent/pkg/source"
	"github.com/asyrjasalo/augent/pkg/types"
)

type countingFetcher struct {
	revision string
	files    map[string][]byte
	calls    int
}

func (c *countingFetcher) Fetch(ctx context.Context, src types.BundleSource) (*source.FetchResult, error) {
	c.calls++
	return &source.FetchResult{Revision: c.revision, Files: c.files}, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filesystem.NewOS(), filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	return store
}

func TestGetOrFetchPopulatesOnce(t *testing.T) {
	store := newTestStore(t)
	fetcher := &countingFetcher{
		revision: "r1",
		files: map[string][]byte{
			"commands/a.md": []byte("alpha"),
			"bundle.toml":   []byte("name = \"a\"\n"),
		},
	}
	src := types.BundleSource{Kind: types.SourceDirectory, Path: "/bundles/a"}

	resolved, snap, err := store.GetOrFetch(context.Background(), src, fetcher)
	require.NoError(t, err)
	assert.Equal(t, "r1", resolved.Revision)
	assert.Len(t, snap.Files, 2)
	assert.Equal(t, 1, fetcher.calls)

	// A pinned revision with a cache entry never re-fetches.
	_, snap2, err := store.GetOrFetch(context.Background(), resolved, fetcher)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, snap.Identity, snap2.Identity)
}

func TestGetOrFetchUnpinnedReusesEntryAfterFetch(t *testing.T) {
	store := newTestStore(t)
	fetcher := &countingFetcher{revision: "r1", files: map[string][]byte{"x.md": []byte("x")}}
	src := types.BundleSource{Kind: types.SourceDirectory, Path: "/bundles/a"}

	_, _, err := store.GetOrFetch(context.Background(), src, fetcher)
	require.NoError(t, err)

	// Unpinned: the fetcher runs again to resolve the revision, but the
	// existing entry is reused rather than repopulated.
	_, snap, err := store.GetOrFetch(context.Background(), src, fetcher)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, "r1", snap.Revision)
}

func TestReadFileVerifiesHash(t *testing.T) {
	store := newTestStore(t)
	fetcher := &countingFetcher{revision: "r1", files: map[string][]byte{"x.md": []byte("good")}}
	src := types.BundleSource{Kind: types.SourceDirectory, Path: "/bundles/a"}

	_, snap, err := store.GetOrFetch(context.Background(), src, fetcher)
	require.NoError(t, err)

	data, err := store.ReadFile(snap, "x.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("good"), data)

	// Corrupt the cached file on disk.
	require.NoError(t, os.WriteFile(filepath.Join(snap.Root, "x.md"), []byte("tampered"), 0644))

	_, err = store.ReadFile(snap, "x.md")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrIntegrityMismatch))
}

func TestReadFileUnknownPath(t *testing.T) {
	store := newTestStore(t)
	fetcher := &countingFetcher{revision: "r1", files: map[string][]byte{"x.md": []byte("x")}}
	_, snap, err := store.GetOrFetch(context.Background(),
		types.BundleSource{Kind: types.SourceDirectory, Path: "/bundles/a"}, fetcher)
	require.NoError(t, err)

	_, err = store.ReadFile(snap, "missing.md")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestSnapshotSurvivesNewStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	fsys := filesystem.NewOS()

	store, err := New(fsys, dir)
	require.NoError(t, err)
	fetcher := &countingFetcher{revision: "r1", files: map[string][]byte{"x.md": []byte("x")}}
	resolved, _, err := store.GetOrFetch(context.Background(),
		types.BundleSource{Kind: types.SourceDirectory, Path: "/bundles/a"}, fetcher)
	require.NoError(t, err)

	// A fresh store over the same directory sees the entry from disk.
	store2, err := New(fsys, dir)
	require.NoError(t, err)
	snap, err := store2.Snapshot(resolved)
	require.NoError(t, err)
	assert.Equal(t, "r1", snap.Revision)

	data, err := store2.ReadFile(snap, "x.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	fetcher := &countingFetcher{revision: "r1", files: map[string][]byte{"x.md": []byte("x")}}
	resolved, _, err := store.GetOrFetch(context.Background(),
		types.BundleSource{Kind: types.SourceDirectory, Path: "/bundles/a"}, fetcher)
	require.NoError(t, err)

	require.NoError(t, store.Clear())

	_, err = store.Snapshot(resolved)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestHashBytesStable(t *testing.T) {
	a := HashBytes([]byte("content"))
	b := HashBytes([]byte("content"))
	c := HashBytes([]byte("other"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestSnapshotHashSensitivity(t *testing.T) {
	snapA := &types.Snapshot{Files: []types.SnapshotFile{
		{Path: "a.md", Hash: "h1"},
		{Path: "b.md", Hash: "h2"},
	}}
	snapB := &types.Snapshot{Files: []types.SnapshotFile{
		{Path: "a.md", Hash: "h1"},
		{Path: "b.md", Hash: "h2"},
	}}
	assert.Equal(t, SnapshotHash(snapA), SnapshotHash(snapB))

	snapC := &types.Snapshot{Files: []types.SnapshotFile{
		{Path: "a.md", Hash: "h1-changed"},
		{Path: "b.md", Hash: "h2"},
	}}
	assert.NotEqual(t, SnapshotHash(snapA), SnapshotHash(snapC))
}
