package commands

import (
	"context"

	"github.com/asyrjasalo/augent/pkg/lockfile"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/transaction"
	"github.com/asyrjasalo/augent/pkg/workspace"
)

// AdoptOptions configures an adopt operation.
type AdoptOptions struct {
	NoWait bool
}

// AdoptResult lists the universal paths migrated into the workspace
// bundle.
type AdoptResult struct {
	Adopted []string
}

// Adopt runs modified-file detection and migration on its own: every
// installed artifact whose content diverged from its bundle's original
// moves into the workspace bundle in universal form, and the workspace
// is re-locked and re-applied so the index records the new ownership.
func (r *Runner) Adopt(ctx context.Context, opts AdoptOptions) (*AdoptResult, error) {
	defer logging.LogOperationStart(r.logger, "adopt")()

	lock, err := workspace.AcquireLock(r.paths, !opts.NoWait)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	ws, err := workspace.Load(r.fs, r.paths)
	if err != nil {
		return nil, err
	}

	allPlatforms, active, err := r.loadPlatforms()
	if err != nil {
		return nil, err
	}

	result := &AdoptResult{}

	err = transaction.Run(r.fs, ws.RecordPaths(), func(tx *transaction.Transaction) error {
		modified, err := r.applier.DetectModified(ws, allPlatforms)
		if err != nil {
			return err
		}
		if len(modified) == 0 {
			return nil
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
		return ws.Persist()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
