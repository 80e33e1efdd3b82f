package manifest

import (
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/types"
)

// BundleManifestName is the manifest file inside a bundle directory.
const BundleManifestName = "bundle.toml"

// Declaration is one bundle reference in a manifest: a name plus a
// source descriptor. Exactly one of Path or Origin is set.
type Declaration struct {
	Name    string `toml:"name"`
	Path    string `toml:"path,omitempty"`
	Origin  string `toml:"origin,omitempty"`
	Ref     string `toml:"ref,omitempty"`
	Subpath string `toml:"subpath,omitempty"`
}

// Source converts the declaration's descriptor fields into a
// types.BundleSource.
func (d Declaration) Source() types.BundleSource {
	if d.Origin != "" {
		return types.BundleSource{
			Kind:    types.SourceRemote,
			Origin:  d.Origin,
			Ref:     d.Ref,
			Subpath: d.Subpath,
		}
	}
	return types.BundleSource{
		Kind: types.SourceDirectory,
		Path: d.Path,
	}
}

// Validate checks the declaration has a name and exactly one source.
func (d Declaration) Validate() error {
	if d.Name == "" {
		return errors.New(errors.ErrInvalidInput, "bundle declaration missing name")
	}
	if d.Path == "" && d.Origin == "" {
		return errors.Newf(errors.ErrInvalidInput, "bundle %q declares no source", d.Name)
	}
	if d.Path != "" && d.Origin != "" {
		return errors.Newf(errors.ErrInvalidInput, "bundle %q declares both path and origin", d.Name)
	}
	return nil
}

// Manifest is the workspace manifest: the directly declared bundles.
// It never contains transitive dependencies.
type Manifest struct {
	Bundles []Declaration `toml:"bundles,omitempty"`
}

// Find returns the declaration with the given name, or nil.
func (m *Manifest) Find(name string) *Declaration {
	for i := range m.Bundles {
		if m.Bundles[i].Name == name {
			return &m.Bundles[i]
		}
	}
	return nil
}

// Add appends a declaration, replacing any existing one with the same
// name.
func (m *Manifest) Add(decl Declaration) {
	if existing := m.Find(decl.Name); existing != nil {
		*existing = decl
		return
	}
	m.Bundles = append(m.Bundles, decl)
}

// Remove deletes the declaration with the given name. It reports
// whether a declaration was removed.
func (m *Manifest) Remove(name string) bool {
	for i := range m.Bundles {
		if m.Bundles[i].Name == name {
			m.Bundles = append(m.Bundles[:i], m.Bundles[i+1:]...)
			return true
		}
	}
	return false
}

// Load reads the workspace manifest at path. A missing file is not an
// error: it yields an empty manifest, the state of a fresh workspace.
func Load(fsys types.FS, path string) (*Manifest, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot read manifest %s", path)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse, "cannot parse manifest %s", path)
	}

	for _, decl := range m.Bundles {
		if err := decl.Validate(); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// Marshal serializes the manifest to TOML. Output is deterministic:
// struct field order and declaration order are preserved.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot serialize manifest")
	}
	return data, nil
}

// Save writes the manifest atomically: temp file in the same directory,
// then rename.
func (m *Manifest) Save(fsys types.FS, path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return writeAtomic(fsys, path, data)
}

func writeAtomic(fsys types.FS, path string, data []byte) error {
	tmp := path + ".tmp"
	if err := fsys.WriteFile(tmp, data, fs.FileMode(0644)); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot write %s", tmp)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot rename %s into place", tmp)
	}
	return nil
}
