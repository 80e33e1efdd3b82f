package manifest

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/types"
)

// BundleManifest is the manifest a bundle carries at its own root
// (bundle.toml): its name, description, and declared dependencies.
type BundleManifest struct {
	Name         string        `toml:"name"`
	Description  string        `toml:"description,omitempty"`
	Dependencies []Declaration `toml:"dependencies,omitempty"`
}

// ParseBundleManifest parses bundle.toml content.
func ParseBundleManifest(data []byte) (*BundleManifest, error) {
	var bm BundleManifest
	if err := toml.Unmarshal(data, &bm); err != nil {
		return nil, errors.Wrap(err, errors.ErrManifestParse, "cannot parse bundle manifest")
	}
	for _, dep := range bm.Dependencies {
		if err := dep.Validate(); err != nil {
			return nil, err
		}
	}
	return &bm, nil
}

// LoadBundleManifest reads bundle.toml from a bundle directory. A
// missing manifest is not an error: the bundle then has no declared
// dependencies and keeps its declared name.
func LoadBundleManifest(fsys types.FS, dir string) (*BundleManifest, error) {
	data, err := fsys.ReadFile(filepath.Join(dir, BundleManifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return &BundleManifest{}, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot read bundle manifest in %s", dir)
	}
	bm, err := ParseBundleManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse, "invalid bundle manifest in %s", dir)
	}
	return bm, nil
}

// DependenciesOf converts the bundle manifest's declarations into
// resolver dependencies. Relative directory paths are resolved against
// the bundle's own directory.
func (bm *BundleManifest) DependenciesOf(bundleDir string) []types.Dependency {
	deps := make([]types.Dependency, 0, len(bm.Dependencies))
	for _, d := range bm.Dependencies {
		src := d.Source()
		if src.Kind == types.SourceDirectory && !filepath.IsAbs(src.Path) {
			src.Path = filepath.Join(bundleDir, src.Path)
		}
		deps = append(deps, types.Dependency{Name: d.Name, Source: src})
	}
	return deps
}
