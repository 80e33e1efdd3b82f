package source

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/paths"
	"github.com/asyrjasalo/augent/pkg/types"
)

// DirectoryFetcher fetches bundles rooted at local directories. The
// revision id is derived from the tree content, so an unchanged
// directory always resolves to the same revision.
type DirectoryFetcher struct {
	fs     types.FS
	logger zerolog.Logger
}

// NewDirectoryFetcher creates a fetcher for directory sources backed by
// the given filesystem.
func NewDirectoryFetcher(fsys types.FS) *DirectoryFetcher {
	return &DirectoryFetcher{
		fs:     fsys,
		logger: logging.GetLogger("source.directory"),
	}
}

// Fetch reads the directory tree and computes its content revision.
// The bundle's own lock and index records are never part of its
// content; neither are VCS internals.
func (f *DirectoryFetcher) Fetch(ctx context.Context, src types.BundleSource) (*FetchResult, error) {
	if src.Kind != types.SourceDirectory {
		return nil, errors.Newf(errors.ErrInvalidInput, "directory fetcher cannot fetch %s source", src.Kind)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrSourceResolution, "fetch cancelled")
	}

	root := filepath.Clean(src.Path)
	if info, err := f.fs.Stat(root); err != nil || !info.IsDir() {
		return nil, errors.Newf(errors.ErrSourceResolution, "bundle directory %s does not exist", root).
			WithDetail("source", src.String())
	}

	files := make(map[string][]byte)
	if err := f.walk(root, "", files); err != nil {
		return nil, err
	}

	revision := treeRevision(files)
	f.logger.Debug().
		Str("path", root).
		Str("revision", revision).
		Int("files", len(files)).
		Msg("Fetched directory source")

	return &FetchResult{Revision: revision, Files: files}, nil
}

func (f *DirectoryFetcher) walk(root, rel string, files map[string][]byte) error {
	dir := filepath.Join(root, rel)
	entries, err := f.fs.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrSourceResolution, "cannot read bundle directory %s", dir)
	}

	for _, entry := range entries {
		name := entry.Name()
		if skipEntry(name) {
			continue
		}
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		if entry.IsDir() {
			if err := f.walk(root, childRel, files); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		data, err := f.fs.ReadFile(filepath.Join(root, childRel))
		if err != nil {
			return errors.Wrapf(err, errors.ErrSourceResolution, "cannot read bundle file %s", childRel)
		}
		files[childRel] = data
	}
	return nil
}

// skipEntry filters out VCS internals and augent's own workspace
// records, which are never bundle content.
func skipEntry(name string) bool {
	switch name {
	case ".git", ".hg", ".svn", paths.LockfileName, paths.IndexName:
		return true
	}
	return false
}

// treeRevision derives a deterministic revision id from file contents:
// a hash over the sorted (path, content hash) sequence.
func treeRevision(files map[string][]byte) string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	hasher := blake3.New()
	for _, name := range names {
		sum := blake3.Sum256(files[name])
		_, _ = hasher.Write([]byte(name))
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write(sum[:])
	}
	digest := hasher.Sum(nil)
	return hex.EncodeToString(digest)
}

// EmptyResult is the fetch result of an empty tree: no files, with the
// revision derived from the empty content sequence. Used for a fresh
// workspace whose own bundle directory does not exist yet.
func EmptyResult() *FetchResult {
	files := map[string][]byte{}
	return &FetchResult{Revision: treeRevision(files), Files: files}
}

// DiscoverBundles lists the installable units inside a source
// directory: the directory itself when it carries a bundle manifest,
// otherwise each immediate subdirectory that does. The caller routes
// the result through a Selector unless an exact subpath was given.
func DiscoverBundles(fsys types.FS, root string) ([]types.Bundle, error) {
	hasManifest := func(dir string) bool {
		_, err := fsys.Stat(filepath.Join(dir, "bundle.toml"))
		return err == nil
	}

	if hasManifest(root) {
		return []types.Bundle{{
			Name:   filepath.Base(root),
			Source: types.BundleSource{Kind: types.SourceDirectory, Path: root},
		}}, nil
	}

	entries, err := fsys.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrSourceResolution, "cannot read source directory %s", root)
	}

	var found []types.Bundle
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if hasManifest(dir) {
			found = append(found, types.Bundle{
				Name:   entry.Name(),
				Source: types.BundleSource{Kind: types.SourceDirectory, Path: dir},
			})
		}
	}
	return found, nil
}
