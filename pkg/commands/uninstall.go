package commands

import (
	"context"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/lockfile"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/manifest"
	"github.com/asyrjasalo/augent/pkg/resolver"
	"github.com/asyrjasalo/augent/pkg/transaction"
	"github.com/asyrjasalo/augent/pkg/workspace"
)

// UninstallOptions configures an uninstall operation.
type UninstallOptions struct {
	// Bundles names the directly declared bundles to remove.
	Bundles []string

	// Keep promotes the removed bundles' direct dependencies to the
	// manifest instead of letting dependency cleanup drop them.
	Keep bool

	// NoWait fails instead of blocking on a held workspace lock.
	NoWait bool
}

// UninstallResult reports what an uninstall removed and kept.
type UninstallResult struct {
	Removed   []string
	Remaining []string

	// Adopted lists locally modified artifacts migrated into the
	// workspace bundle before removal.
	Adopted []string
}

// Uninstall removes bundles from the manifest and re-applies the
// workspace. Dependencies no longer referenced by any remaining bundle
// drop out of the resolution and their artifacts are removed; a path
// both a removed and a surviving bundle provided reveals the survivor's
// content at the same output.
func (r *Runner) Uninstall(ctx context.Context, opts UninstallOptions) (*UninstallResult, error) {
	defer logging.LogOperationStart(r.logger, "uninstall")()

	lock, err := workspace.AcquireLock(r.paths, !opts.NoWait)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	ws, err := workspace.Load(r.fs, r.paths)
	if err != nil {
		return nil, err
	}

	for _, name := range opts.Bundles {
		if name == resolver.WorkspaceBundleName {
			return nil, errors.Newf(errors.ErrInvalidInput, "cannot uninstall the workspace bundle")
		}
		if ws.Manifest.Find(name) == nil {
			return nil, errors.Newf(errors.ErrNotFound, "bundle %q is not declared in the manifest", name)
		}
	}

	if opts.Keep {
		promoteDependencies(ws, opts.Bundles)
	}
	for _, name := range opts.Bundles {
		ws.Manifest.Remove(name)
	}

	allPlatforms, active, err := r.loadPlatforms()
	if err != nil {
		return nil, err
	}

	result := &UninstallResult{Removed: opts.Bundles}

	err = transaction.Run(r.fs, ws.RecordPaths(), func(tx *transaction.Transaction) error {
		// Local edits migrate into the workspace bundle first, so an
		// edited artifact owned by a removed bundle survives the
		// removal as workspace content.
		modified, err := r.applier.DetectModified(ws, allPlatforms)
		if err != nil {
			return err
		}
		if err := r.applier.Migrate(tx, ws, modified); err != nil {
			return err
		}
		for _, m := range modified {
			result.Adopted = append(result.Adopted, m.Entry.Path)
		}

		order, snaps, err := r.resolveState(ctx, ws)
		if err != nil {
			return err
		}

		fresh := lockfile.Generate(order)
		if err := r.applier.Apply(tx, ws, fresh, snaps, active); err != nil {
			return err
		}
		ws.Lockfile = fresh

		for _, res := range order {
			result.Remaining = append(result.Remaining, res.Bundle.Name)
		}
		return ws.Persist()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// promoteDependencies copies the locked direct dependencies of each
// removed bundle into the manifest, pinned to their locked sources, so
// they survive the removal as direct declarations.
func promoteDependencies(ws *workspace.State, removed []string) {
	if ws.Lockfile == nil {
		return
	}
	removedSet := make(map[string]bool, len(removed))
	for _, name := range removed {
		removedSet[name] = true
	}
	for _, name := range removed {
		lb := ws.Lockfile.Find(name)
		if lb == nil {
			continue
		}
		for _, dep := range lb.Deps {
			if removedSet[dep] || ws.Manifest.Find(dep) != nil {
				continue
			}
			depLocked := ws.Lockfile.Find(dep)
			if depLocked == nil {
				continue
			}
			ws.Manifest.Add(manifest.Declaration{
				Name:    dep,
				Path:    depLocked.Source.Path,
				Origin:  depLocked.Source.Origin,
				Ref:     depLocked.Source.Ref,
				Subpath: depLocked.Source.Subpath,
			})
		}
	}
}
