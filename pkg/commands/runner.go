package commands

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/asyrjasalo/augent/pkg/cache"
	"github.com/asyrjasalo/augent/pkg/index"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/paths"
	"github.com/asyrjasalo/augent/pkg/resolver"
	"github.com/asyrjasalo/augent/pkg/source"
	"github.com/asyrjasalo/augent/pkg/transform"
	"github.com/asyrjasalo/augent/pkg/types"
	"github.com/asyrjasalo/augent/pkg/workspace"
)

// Runner wires the engine together for one workspace: filesystem,
// paths, cache store, resolver, and index applier. The CLI builds one
// Runner per invocation; tests build them over temp dirs or the
// in-memory filesystem.
type Runner struct {
	fs       types.FS
	paths    *paths.Paths
	store    *cache.Store
	resolver *resolver.Resolver
	applier  *index.Applier
	fetchers map[types.SourceKind]source.Fetcher
	selector source.Selector
	logger   zerolog.Logger
}

// NewRunner creates a Runner. Fetchers may omit kinds the caller never
// uses; a nil selector keeps every discovered bundle.
func NewRunner(fsys types.FS, p *paths.Paths, fetchers map[types.SourceKind]source.Fetcher, selector source.Selector) (*Runner, error) {
	store, err := cache.New(fsys, p.CacheDir())
	if err != nil {
		return nil, err
	}
	if fetchers == nil {
		fetchers = map[types.SourceKind]source.Fetcher{
			types.SourceDirectory: source.NewDirectoryFetcher(fsys),
		}
	}
	if selector == nil {
		selector = source.SelectAll{}
	}
	return &Runner{
		fs:       fsys,
		paths:    p,
		store:    store,
		resolver: resolver.New(store, fsys, fetchers),
		applier:  index.NewApplier(store),
		fetchers: fetchers,
		selector: selector,
		logger:   logging.GetLogger("commands"),
	}, nil
}

// Store exposes the cache store for maintenance commands.
func (r *Runner) Store() *cache.Store {
	return r.store
}

// loadPlatforms loads the platform set and the active subset for this
// workspace.
func (r *Runner) loadPlatforms() (all, active []types.Platform, err error) {
	all, err = transform.LoadPlatforms(r.paths.ManifestPath())
	if err != nil {
		return nil, nil, err
	}
	active = transform.Detect(r.fs, r.paths.WorkspaceRoot(), all)
	return all, active, nil
}

// resolveState resolves the manifest's declarations into the linear
// install order plus a by-name snapshot map.
func (r *Runner) resolveState(ctx context.Context, ws *workspace.State) ([]resolver.Resolved, map[string]*types.Snapshot, error) {
	declared := make([]types.Dependency, 0, len(ws.Manifest.Bundles))
	for _, decl := range ws.Manifest.Bundles {
		declared = append(declared, types.Dependency{Name: decl.Name, Source: decl.Source()})
	}

	order, err := r.resolver.Resolve(ctx, declared, r.paths.BundleDir())
	if err != nil {
		return nil, nil, err
	}

	snaps := make(map[string]*types.Snapshot, len(order))
	for _, res := range order {
		snaps[res.Bundle.Name] = res.Snapshot
	}
	return order, snaps, nil
}
