package lockfile

import (
	"bytes"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/resolver"
	"github.com/asyrjasalo/augent/pkg/types"
)

// Generate builds a lockfile from a resolved install order. Bundle
// order is the resolver's order (dependencies first, workspace bundle
// last); each bundle's file list comes sorted from its snapshot. Given
// unchanged inputs the output is byte-identical across invocations.
func Generate(order []resolver.Resolved) *types.Lockfile {
	lf := &types.Lockfile{Version: types.LockfileVersion}
	for _, r := range order {
		files := r.Snapshot.Paths()
		if files == nil {
			files = []string{}
		}
		var deps []string
		for _, d := range r.Bundle.Dependencies {
			deps = append(deps, d.Name)
		}
		lf.Bundles = append(lf.Bundles, types.LockedBundle{
			Name:   r.Bundle.Name,
			Source: r.Source,
			Hash:   r.Hash,
			Deps:   deps,
			Files:  files,
		})
	}
	return lf
}

// Marshal serializes the lockfile. Struct field order and pre-sorted
// slices make the encoding deterministic.
func Marshal(lf *types.Lockfile) ([]byte, error) {
	data, err := yaml.Marshal(lf)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot serialize lockfile")
	}
	return data, nil
}

// Load reads a lockfile. A missing file yields nil with no error: the
// workspace has simply never been locked.
func Load(fsys types.FS, path string) (*types.Lockfile, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot read lockfile %s", path)
	}

	var lf types.Lockfile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse, "cannot parse lockfile %s", path)
	}
	return &lf, nil
}

// Save writes the lockfile atomically (temp file then rename), so a
// concurrent reader observes either the old or the new complete record.
func Save(fsys types.FS, path string, lf *types.Lockfile) error {
	data, err := Marshal(lf)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := fsys.WriteFile(tmp, data, fs.FileMode(0644)); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot write lockfile %s", tmp)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot rename lockfile into place")
	}
	return nil
}

// ValidateFrozen compares an existing lockfile against a freshly
// generated one with strict structural equality. On mismatch nothing
// has been written; the existing lockfile stays untouched.
func ValidateFrozen(existing, fresh *types.Lockfile) error {
	if existing == nil {
		return errors.New(errors.ErrFrozenMismatch, "frozen install requested but no lockfile exists")
	}

	existingBytes, err := Marshal(existing)
	if err != nil {
		return err
	}
	freshBytes, err := Marshal(fresh)
	if err != nil {
		return err
	}
	if bytes.Equal(existingBytes, freshBytes) {
		return nil
	}

	// Name the first divergence for the error message.
	detail := diff(existing, fresh)
	return errors.Newf(errors.ErrFrozenMismatch,
		"lockfile is out of date: %s", detail).
		WithDetail("hint", "re-run without --frozen to update the lockfile")
}

func diff(existing, fresh *types.Lockfile) string {
	if len(existing.Bundles) != len(fresh.Bundles) {
		return "resolved bundle set changed"
	}
	for i := range existing.Bundles {
		a, b := &existing.Bundles[i], &fresh.Bundles[i]
		switch {
		case a.Name != b.Name:
			return "bundle order changed at " + a.Name
		case a.Source.Revision != b.Source.Revision:
			return "bundle " + a.Name + " resolves to a different revision"
		case a.Hash != b.Hash:
			return "bundle " + a.Name + " content changed"
		}
	}
	return "lockfile contents changed"
}
