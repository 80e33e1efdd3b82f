package workspace

import (
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/lockfile"
	"github.com/asyrjasalo/augent/pkg/manifest"
	"github.com/asyrjasalo/augent/pkg/paths"
	"github.com/asyrjasalo/augent/pkg/types"
)

// State is the explicit value of the three persisted workspace records:
// manifest, lockfile, and workspace index. It is threaded through every
// operation instead of living in process-wide globals.
type State struct {
	FS    types.FS
	Paths *paths.Paths

	Manifest *manifest.Manifest
	Lockfile *types.Lockfile // nil when the workspace has never been locked
	Index    *types.WorkspaceIndex
}

// Load reads the three records. Missing records are valid: a fresh
// workspace has none of them.
func Load(fsys types.FS, p *paths.Paths) (*State, error) {
	m, err := manifest.Load(fsys, p.ManifestPath())
	if err != nil {
		return nil, err
	}

	lf, err := lockfile.Load(fsys, p.LockfilePath())
	if err != nil {
		return nil, err
	}

	idx, err := loadIndex(fsys, p.IndexPath())
	if err != nil {
		return nil, err
	}

	return &State{
		FS:       fsys,
		Paths:    p,
		Manifest: m,
		Lockfile: lf,
		Index:    idx,
	}, nil
}

// RecordPaths lists the three record files, in the order transactions
// snapshot them.
func (s *State) RecordPaths() []string {
	return []string{s.Paths.ManifestPath(), s.Paths.LockfilePath(), s.Paths.IndexPath()}
}

// Persist writes all three records atomically (write-to-temp then
// rename). Mutating operations call this as their very last step: if
// the process dies mid-operation the records keep their pre-operation
// form, which is the intended fail-safe.
func (s *State) Persist() error {
	if err := s.Manifest.Save(s.FS, s.Paths.ManifestPath()); err != nil {
		return err
	}
	if s.Lockfile != nil {
		if err := lockfile.Save(s.FS, s.Paths.LockfilePath(), s.Lockfile); err != nil {
			return err
		}
	}
	return saveIndex(s.FS, s.Paths.IndexPath(), s.Index)
}

func loadIndex(fsys types.FS, path string) (*types.WorkspaceIndex, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.WorkspaceIndex{Version: types.IndexVersion}, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot read workspace index %s", path)
	}

	var idx types.WorkspaceIndex
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse, "cannot parse workspace index %s", path)
	}
	return &idx, nil
}

func saveIndex(fsys types.FS, path string, idx *types.WorkspaceIndex) error {
	idx.Sort()
	data, err := yaml.Marshal(idx)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot serialize workspace index")
	}
	tmp := path + ".tmp"
	if err := fsys.WriteFile(tmp, data, fs.FileMode(0644)); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot write workspace index %s", tmp)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot rename workspace index into place")
	}
	return nil
}
