package index

import (
	"path/filepath"

	"github.com/asyrjasalo/augent/pkg/cache"
	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/resolver"
	"github.com/asyrjasalo/augent/pkg/transaction"
	"github.com/asyrjasalo/augent/pkg/transform"
	"github.com/asyrjasalo/augent/pkg/types"
	"github.com/asyrjasalo/augent/pkg/workspace"
)

// Modified is one installed artifact whose live content no longer
// matches the original its owning bundle provided.
type Modified struct {
	Entry   types.IndexEntry
	Content []byte
}

// DetectModified compares every current index entry's live output file
// against the hash of the original universal-format source in the
// owning bundle's cache snapshot. Only entries installed verbatim
// (replace strategy) are comparable: merged outputs legitimately differ
// from any single source.
func (a *Applier) DetectModified(ws *workspace.State, platforms []types.Platform) ([]Modified, error) {
	if ws.Lockfile == nil {
		return nil, nil
	}

	var out []Modified
	for _, entry := range ws.Index.Entries {
		platform, err := transform.Find(platforms, entry.Platform)
		if err != nil {
			// Platform definition no longer exists; nothing to compare.
			continue
		}
		results, err := a.engine.Resolve(entry.Path, platform)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 || results[0].Strategy != types.MergeReplace {
			continue
		}

		lb := ws.Lockfile.Find(entry.Bundle)
		if lb == nil {
			continue
		}
		snap, err := a.store.Snapshot(lb.Source)
		if err != nil {
			if errors.IsErrorCode(err, errors.ErrNotFound) {
				// Evicted from the cache. Nothing to compare against;
				// resolution repopulates the entry afterwards.
				continue
			}
			return nil, err
		}
		want, ok := snap.FileHash(entry.Path)
		if !ok {
			continue
		}

		live, err := readIfExists(ws.FS, filepath.Join(ws.Paths.WorkspaceRoot(), entry.Output))
		if err != nil {
			return nil, err
		}
		if live == nil {
			// Deleted by hand: treated as untouched, reinstall restores it.
			continue
		}
		if cache.HashBytes(live) != want {
			out = append(out, Modified{Entry: entry, Content: live})
			a.logger.Info().
				Str("path", entry.Path).
				Str("platform", entry.Platform).
				Str("bundle", entry.Bundle).
				Msg("Detected locally modified artifact")
		}
	}
	return out, nil
}

// Migrate moves modified artifacts into the workspace's own bundle in
// universal form. The workspace bundle is always last in lock order, so
// the next install keeps the edit as the effective content instead of
// overwriting it. Provenance survives too, since the index then names
// the workspace bundle as the owner.
func (a *Applier) Migrate(tx *transaction.Transaction, ws *workspace.State, modified []Modified) error {
	seen := make(map[string]bool)
	for _, m := range modified {
		if m.Entry.Bundle == resolver.WorkspaceBundleName {
			// Already owned by the workspace bundle; the edit is its
			// content now.
			continue
		}
		if seen[m.Entry.Path] {
			continue
		}
		seen[m.Entry.Path] = true

		dest := filepath.Join(ws.Paths.BundleDir(), filepath.FromSlash(m.Entry.Path))
		if err := tx.WriteFile(dest, m.Content, 0644); err != nil {
			return err
		}

		a.logger.Info().
			Str("path", m.Entry.Path).
			Str("dest", dest).
			Msg("Adopted modified artifact into workspace bundle")
	}
	return nil
}
