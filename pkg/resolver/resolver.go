package resolver

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/asyrjasalo/augent/pkg/cache"
	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/manifest"
	"github.com/asyrjasalo/augent/pkg/source"
	"github.com/asyrjasalo/augent/pkg/types"
)

// WorkspaceBundleName is the reserved name of the workspace's own
// bundle, always the last entry of the resolved order.
const WorkspaceBundleName = "workspace"

// Resolved is one node of the linear install order: the bundle, its
// revision-pinned source, its cached snapshot, and its content hash.
type Resolved struct {
	Bundle   types.Bundle
	Source   types.BundleSource
	Snapshot *types.Snapshot
	Hash     string
}

// node colors for cycle detection.
type color int

const (
	unvisited color = iota
	inProgress
	done
)

type node struct {
	state    color
	source   types.BundleSource
	resolved Resolved
}

// Resolver builds the dependency graph from manifests, detects cycles,
// deduplicates, and produces the linear install order. All fetching
// goes through the cache, so resolving is read-only with respect to the
// workspace.
type Resolver struct {
	store    *cache.Store
	fs       types.FS
	fetchers map[types.SourceKind]source.Fetcher
	logger   zerolog.Logger
}

// New creates a Resolver. The fetcher map supplies the external fetch
// collaborator per source kind; kinds without a fetcher fail resolution
// with a source error.
func New(store *cache.Store, fsys types.FS, fetchers map[types.SourceKind]source.Fetcher) *Resolver {
	return &Resolver{
		store:    store,
		fs:       fsys,
		fetchers: fetchers,
		logger:   logging.GetLogger("resolver"),
	}
}

// Resolve builds the full install order for the workspace: the
// manifest's direct declarations plus, recursively, each fetched
// bundle's own declared dependencies, ending with the workspace bundle
// rooted at workspaceBundleDir.
//
// Resolution halts before any mutation: a cycle, a name conflict, or a
// fetch failure leaves the workspace untouched.
func (r *Resolver) Resolve(ctx context.Context, declared []types.Dependency, workspaceBundleDir string) ([]Resolved, error) {
	st := &state{
		resolver: r,
		nodes:    make(map[string]*node),
	}

	for _, dep := range declared {
		if dep.Name == WorkspaceBundleName {
			return nil, errors.Newf(errors.ErrNameConflict,
				"bundle name %q is reserved for the workspace itself", WorkspaceBundleName)
		}
		if err := st.visit(ctx, dep); err != nil {
			return nil, err
		}
	}

	ws, err := r.resolveWorkspaceBundle(ctx, workspaceBundleDir)
	if err != nil {
		return nil, err
	}
	st.order = append(st.order, ws)

	r.logger.Info().
		Int("bundles", len(st.order)).
		Msg("Resolution complete")

	return st.order, nil
}

// state carries one resolution's graph coloring and output order.
type state struct {
	resolver *Resolver
	nodes    map[string]*node
	chain    []string
	order    []Resolved
}

func (st *state) visit(ctx context.Context, dep types.Dependency) error {
	r := st.resolver

	if existing, seen := st.nodes[dep.Name]; seen {
		if !existing.source.Equal(dep.Source) {
			return errors.Newf(errors.ErrNameConflict,
				"bundle %q declared with conflicting sources %s and %s",
				dep.Name, existing.source, dep.Source)
		}
		switch existing.state {
		case inProgress:
			// Back-edge: the full chain names the cycle.
			chain := append(append([]string{}, st.chain...), dep.Name)
			return errors.Newf(errors.ErrCircularDependency,
				"circular dependency: %s", strings.Join(trimChain(chain, dep.Name), " → ")).
				WithDetail("chain", chain)
		case done:
			// Identical name+source collapses into one node.
			return nil
		}
	}

	fetcher, ok := r.fetchers[dep.Source.Kind]
	if !ok {
		return errors.Newf(errors.ErrSourceResolution,
			"no fetcher available for %s source %s", dep.Source.Kind, dep.Source)
	}

	resolved, snap, err := r.store.GetOrFetch(ctx, dep.Source, fetcher)
	if err != nil {
		return errors.Wrapf(err, errors.ErrSourceResolution,
			"cannot resolve bundle %q", dep.Name)
	}

	n := &node{state: inProgress, source: dep.Source}
	st.nodes[dep.Name] = n
	st.chain = append(st.chain, dep.Name)

	deps, err := r.declaredDependencies(dep, snap)
	if err != nil {
		return err
	}
	for _, child := range deps {
		if err := st.visit(ctx, child); err != nil {
			return err
		}
	}

	st.chain = st.chain[:len(st.chain)-1]
	n.state = done
	n.resolved = Resolved{
		Bundle: types.Bundle{
			Name:         dep.Name,
			Source:       dep.Source,
			Dependencies: deps,
		},
		Source:   resolved,
		Snapshot: snap,
		Hash:     cache.SnapshotHash(snap),
	}
	st.order = append(st.order, n.resolved)

	r.logger.Debug().
		Str("bundle", dep.Name).
		Str("revision", resolved.Revision).
		Int("deps", len(deps)).
		Msg("Resolved bundle")

	return nil
}

// declaredDependencies reads the bundle's own manifest out of its
// snapshot. Relative directory dependencies resolve against the
// bundle's directory; a remote bundle cannot declare one.
func (r *Resolver) declaredDependencies(dep types.Dependency, snap *types.Snapshot) ([]types.Dependency, error) {
	if _, ok := snap.FileHash(manifest.BundleManifestName); !ok {
		return nil, nil
	}
	data, err := r.store.ReadFile(snap, manifest.BundleManifestName)
	if err != nil {
		return nil, err
	}
	bm, err := manifest.ParseBundleManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse,
			"invalid bundle manifest in %q", dep.Name)
	}

	var out []types.Dependency
	for _, d := range bm.Dependencies {
		src := d.Source()
		if src.Kind == types.SourceDirectory && !filepath.IsAbs(src.Path) {
			if dep.Source.Kind != types.SourceDirectory {
				return nil, errors.Newf(errors.ErrSourceResolution,
					"bundle %q fetched from %s cannot declare relative dependency %q",
					dep.Name, dep.Source, d.Name)
			}
			src.Path = filepath.Join(dep.Source.Path, src.Path)
		}
		out = append(out, types.Dependency{Name: d.Name, Source: src})
	}
	return out, nil
}

// resolveWorkspaceBundle resolves the workspace's own bundle. A missing
// bundle directory is a fresh workspace: it resolves to an empty tree
// rather than an error.
func (r *Resolver) resolveWorkspaceBundle(ctx context.Context, dir string) (Resolved, error) {
	src := types.BundleSource{Kind: types.SourceDirectory, Path: dir}

	fetcher := source.FetcherFunc(func(ctx context.Context, s types.BundleSource) (*source.FetchResult, error) {
		if _, err := r.fs.Stat(dir); err != nil {
			if os.IsNotExist(err) {
				return source.EmptyResult(), nil
			}
			return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot stat workspace bundle %s", dir)
		}
		return source.NewDirectoryFetcher(r.fs).Fetch(ctx, s)
	})

	resolved, snap, err := r.store.GetOrFetch(ctx, src, fetcher)
	if err != nil {
		return Resolved{}, err
	}

	return Resolved{
		Bundle: types.Bundle{
			Name:   WorkspaceBundleName,
			Source: src,
		},
		Source:   resolved,
		Snapshot: snap,
		Hash:     cache.SnapshotHash(snap),
	}, nil
}

// trimChain reduces the recorded visit chain to the cycle itself,
// starting at the first occurrence of the repeated node.
func trimChain(chain []string, repeat string) []string {
	for i, name := range chain {
		if name == repeat {
			return chain[i:]
		}
	}
	return chain
}
