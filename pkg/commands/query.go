package commands

import (
	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/types"
	"github.com/asyrjasalo/augent/pkg/workspace"
)

// BundleInfo is one row of the list view.
type BundleInfo struct {
	Name      string
	Source    string
	Revision  string
	Files     int
	Installed int
	Direct    bool
}

// List reports every locked bundle with its installed artifact count.
// Read-only: no workspace lock is taken, because the records are
// written atomically and a reader always sees a complete state.
func (r *Runner) List() ([]BundleInfo, error) {
	ws, err := workspace.Load(r.fs, r.paths)
	if err != nil {
		return nil, err
	}
	if ws.Lockfile == nil {
		return nil, nil
	}

	installed := make(map[string]int)
	for _, entry := range ws.Index.Entries {
		installed[entry.Bundle]++
	}

	out := make([]BundleInfo, 0, len(ws.Lockfile.Bundles))
	for _, lb := range ws.Lockfile.Bundles {
		out = append(out, BundleInfo{
			Name:      lb.Name,
			Source:    lb.Source.String(),
			Revision:  shortRevision(lb.Source.Revision),
			Files:     len(lb.Files),
			Installed: installed[lb.Name],
			Direct:    ws.Manifest.Find(lb.Name) != nil,
		})
	}
	return out, nil
}

// BundleDetail is the show view: the locked record plus the bundle's
// current index entries.
type BundleDetail struct {
	Bundle  types.LockedBundle
	Entries []types.IndexEntry
}

// Show reports one bundle's locked state and installed artifacts.
func (r *Runner) Show(name string) (*BundleDetail, error) {
	ws, err := workspace.Load(r.fs, r.paths)
	if err != nil {
		return nil, err
	}
	if ws.Lockfile == nil {
		return nil, errors.New(errors.ErrNotFound, "workspace has no lockfile; run install first")
	}
	lb := ws.Lockfile.Find(name)
	if lb == nil {
		return nil, errors.Newf(errors.ErrNotFound, "bundle %q is not in the lockfile", name)
	}
	return &BundleDetail{
		Bundle:  *lb,
		Entries: ws.Index.ByBundle(name),
	}, nil
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
