package cache

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/source"
	"github.com/asyrjasalo/augent/pkg/types"
)

// snapshotMeta is the metadata file written next to each snapshot tree.
const snapshotMeta = "snapshot.yaml"

// metaCacheSize bounds the in-memory snapshot metadata cache. A
// resolve touches each snapshot at most a handful of times; 64 keeps
// even deep dependency graphs fully memoized.
const metaCacheSize = 64

// Store is the content-addressed snapshot store shared across
// workspaces. Entries are keyed by (source slug, resolved revision) and
// never mutated after first write, which makes concurrent reads safe
// without locking.
type Store struct {
	fs     types.FS
	root   string
	memo   *lru.Cache[string, *types.Snapshot]
	logger zerolog.Logger
}

// New creates a Store rooted at dir, creating it if needed.
func New(fsys types.FS, dir string) (*Store, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot create cache directory %s", dir)
	}
	memo, err := lru.New[string, *types.Snapshot](metaCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot create snapshot cache")
	}
	return &Store{
		fs:     fsys,
		root:   dir,
		memo:   memo,
		logger: logging.GetLogger("cache"),
	}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) entryDir(src types.BundleSource, revision string) string {
	return filepath.Join(s.root, src.Slug(), revision)
}

func memoKey(src types.BundleSource, revision string) string {
	return src.Slug() + "@" + revision
}

// GetOrFetch returns the snapshot for src, fetching and populating the
// cache only when no entry exists for the resolved revision. The
// returned source always carries the resolved revision.
func (s *Store) GetOrFetch(ctx context.Context, src types.BundleSource, fetcher source.Fetcher) (types.BundleSource, *types.Snapshot, error) {
	// A pinned revision with an existing entry never re-fetches.
	if src.Revision != "" {
		if snap, err := s.Snapshot(src); err == nil {
			return src, snap, nil
		}
	}

	result, err := fetcher.Fetch(ctx, src)
	if err != nil {
		return src, nil, err
	}
	resolved := src
	resolved.Revision = result.Revision

	// Another resolve (or another workspace) may have populated this
	// revision already; the entry is immutable, so reuse it.
	if snap, err := s.Snapshot(resolved); err == nil {
		return resolved, snap, nil
	}

	snap, err := s.populate(resolved, result)
	if err != nil {
		return resolved, nil, err
	}
	return resolved, snap, nil
}

// Snapshot loads the cached snapshot for an already-resolved source.
func (s *Store) Snapshot(src types.BundleSource) (*types.Snapshot, error) {
	if src.Revision == "" {
		return nil, errors.Newf(errors.ErrInvalidInput, "source %s has no resolved revision", src)
	}

	key := memoKey(src, src.Revision)
	if snap, ok := s.memo.Get(key); ok {
		return snap, nil
	}

	dir := s.entryDir(src, src.Revision)
	data, err := s.fs.ReadFile(filepath.Join(dir, snapshotMeta))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrNotFound, "no cache entry for %s at %s", src, src.Revision)
		}
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot read cache entry %s", dir)
	}

	var snap types.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, errors.ErrIntegrityMismatch, "corrupt cache entry %s", dir)
	}
	snap.Root = filepath.Join(dir, "tree")

	s.memo.Add(key, &snap)
	return &snap, nil
}

// ReadFile returns the content of one universal path from a snapshot,
// verifying it against the recorded hash.
func (s *Store) ReadFile(snap *types.Snapshot, path string) ([]byte, error) {
	want, ok := snap.FileHash(path)
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "snapshot %s@%s has no file %s", snap.Identity, snap.Revision, path)
	}
	data, err := s.fs.ReadFile(filepath.Join(snap.Root, filepath.FromSlash(path)))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot read cached file %s", path)
	}
	if got := HashBytes(data); got != want {
		return nil, errors.Newf(errors.ErrIntegrityMismatch, "cached file %s hash mismatch", path).
			WithDetail("expected", want).
			WithDetail("actual", got)
	}
	return data, nil
}

// populate writes a fetched tree into the cache. The entry is built in
// a staging directory and renamed into place, so a populate race
// resolves to last-writer-wins with byte-identical content.
func (s *Store) populate(src types.BundleSource, result *source.FetchResult) (*types.Snapshot, error) {
	final := s.entryDir(src, src.Revision)
	staging := filepath.Join(s.root, src.Slug(), ".staging-"+src.Revision)

	cleanup := func() { _ = s.fs.RemoveAll(staging) }

	names := make([]string, 0, len(result.Files))
	for name := range result.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	snap := &types.Snapshot{
		Identity: src.Identity(),
		Revision: src.Revision,
		Files:    make([]types.SnapshotFile, 0, len(names)),
	}

	for _, name := range names {
		content := result.Files[name]
		dest := filepath.Join(staging, "tree", filepath.FromSlash(name))
		if err := s.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			cleanup()
			return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot create cache directory for %s", name)
		}
		if err := s.fs.WriteFile(dest, content, fs.FileMode(0644)); err != nil {
			cleanup()
			return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot write cached file %s", name)
		}
		snap.Files = append(snap.Files, types.SnapshotFile{Path: name, Hash: HashBytes(content)})
	}

	meta, err := yaml.Marshal(snap)
	if err != nil {
		cleanup()
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot serialize snapshot metadata")
	}
	if err := s.fs.MkdirAll(staging, 0755); err != nil {
		cleanup()
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot create staging directory %s", staging)
	}
	if err := s.fs.WriteFile(filepath.Join(staging, snapshotMeta), meta, fs.FileMode(0644)); err != nil {
		cleanup()
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot write snapshot metadata")
	}

	if err := s.fs.Rename(staging, final); err != nil {
		// A concurrent populate won the race. Both trees carry the
		// same revision and therefore the same bytes.
		if _, statErr := s.fs.Stat(filepath.Join(final, snapshotMeta)); statErr == nil {
			cleanup()
		} else {
			cleanup()
			return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot publish cache entry %s", final)
		}
	}

	snap.Root = filepath.Join(final, "tree")
	s.memo.Add(memoKey(src, src.Revision), snap)

	s.logger.Debug().
		Str("source", src.Identity()).
		Str("revision", src.Revision).
		Int("files", len(snap.Files)).
		Msg("Populated cache entry")

	return snap, nil
}

// Clear removes every cache entry. Maintenance only; never on the
// install hot path.
func (s *Store) Clear() error {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot read cache root %s", s.root)
	}
	for _, entry := range entries {
		if err := s.fs.RemoveAll(filepath.Join(s.root, entry.Name())); err != nil {
			return errors.Wrapf(err, errors.ErrFilesystem, "cannot remove cache entry %s", entry.Name())
		}
	}
	s.memo.Purge()
	return nil
}
