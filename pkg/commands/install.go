package commands

import (
	"context"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/lockfile"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/manifest"
	"github.com/asyrjasalo/augent/pkg/source"
	"github.com/asyrjasalo/augent/pkg/transaction"
	"github.com/asyrjasalo/augent/pkg/workspace"
)

// InstallOptions configures an install operation.
type InstallOptions struct {
	// Add declares bundles to append to the manifest before resolving.
	Add []manifest.Declaration

	// Frozen validates the freshly generated lockfile against the
	// existing one and fails without writing anything on mismatch.
	Frozen bool

	// DryRun resolves and reports without mutating the workspace.
	DryRun bool

	// NoWait fails with a lock-contention error instead of blocking
	// when another operation holds the workspace lock.
	NoWait bool
}

// InstallResult reports what an install did (or, dry-run, would do).
type InstallResult struct {
	Bundles   []string
	Platforms []string
	Adopted   []string
	DryRun    bool
}

// Install resolves the workspace's bundles, locks them, and installs
// their artifacts for every detected platform, as one all-or-nothing
// transaction. Any planning error aborts before mutation; any
// execution error rolls the workspace back.
func (r *Runner) Install(ctx context.Context, opts InstallOptions) (*InstallResult, error) {
	defer logging.LogOperationStart(r.logger, "install")()

	if !opts.DryRun {
		lock, err := workspace.AcquireLock(r.paths, !opts.NoWait)
		if err != nil {
			return nil, err
		}
		defer lock.Release()
	}

	ws, err := workspace.Load(r.fs, r.paths)
	if err != nil {
		return nil, err
	}

	for _, decl := range opts.Add {
		if err := decl.Validate(); err != nil {
			return nil, err
		}
		ws.Manifest.Add(decl)
	}

	allPlatforms, active, err := r.loadPlatforms()
	if err != nil {
		return nil, err
	}

	result := &InstallResult{DryRun: opts.DryRun}
	for _, p := range active {
		result.Platforms = append(result.Platforms, p.ID)
	}

	if opts.DryRun {
		order, _, err := r.resolveState(ctx, ws)
		if err != nil {
			return nil, err
		}
		for _, res := range order {
			result.Bundles = append(result.Bundles, res.Bundle.Name)
		}
		return result, nil
	}

	err = transaction.Run(r.fs, ws.RecordPaths(), func(tx *transaction.Transaction) error {
		// Locally modified artifacts migrate into the workspace bundle
		// first, so resolution sees the edits as workspace content and
		// the apply below does not clobber them.
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
		if opts.Frozen {
			if err := lockfile.ValidateFrozen(ws.Lockfile, fresh); err != nil {
				return err
			}
		}

		if err := r.applier.Apply(tx, ws, fresh, snaps, active); err != nil {
			return err
		}
		ws.Lockfile = fresh

		for _, res := range order {
			result.Bundles = append(result.Bundles, res.Bundle.Name)
		}

		// Records are written last: an interrupt before this point
		// leaves them in their pre-operation form.
		return ws.Persist()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Discover lists the installable bundles at a directory source and
// routes the result through the selector. An exact subpath bypasses
// selection entirely.
func (r *Runner) Discover(root, subpath string) ([]manifest.Declaration, error) {
	if subpath != "" {
		dir := root + "/" + subpath
		bundles, err := r.discoverAt(dir)
		if err != nil {
			return nil, err
		}
		if len(bundles) == 0 {
			return nil, errors.Newf(errors.ErrSourceResolution, "no bundle at %s", dir)
		}
		return bundles[:1], nil
	}

	candidates, err := r.discoverAt(root)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.Newf(errors.ErrSourceResolution, "no bundles found at %s", root)
	}
	return candidates, nil
}

func (r *Runner) discoverAt(root string) ([]manifest.Declaration, error) {
	found, err := source.DiscoverBundles(r.fs, root)
	if err != nil {
		return nil, err
	}
	chosen, err := r.selector.Select(found)
	if err != nil {
		return nil, err
	}
	decls := make([]manifest.Declaration, 0, len(chosen))
	for _, b := range chosen {
		decls = append(decls, manifest.Declaration{Name: b.Name, Path: b.Source.Path})
	}
	return decls, nil
}
