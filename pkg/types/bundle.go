package types

import "sort"

// Dependency is a bundle's declared dependency on another bundle.
// Declaration order is significant: it seeds the resolver's stable
// topological order.
type Dependency struct {
	Name   string
	Source BundleSource
}

// Bundle is a named collection of platform-independent resources,
// located by a source and optionally depending on other bundles.
type Bundle struct {
	Name         string
	Source       BundleSource
	Dependencies []Dependency
	Description  string
}

// LockedBundle is a Bundle pinned to an exact source revision, with a
// content hash over every file the bundle provides (including its own
// manifest) and the sorted list of universal paths it provides.
type LockedBundle struct {
	Name   string       `yaml:"name"`
	Source BundleSource `yaml:"source"`
	Hash   string       `yaml:"hash"`
	Deps   []string     `yaml:"deps,omitempty"`
	Files  []string     `yaml:"files"`
}

// Provides reports whether the bundle provides the given universal path.
// Files is kept sorted, so this is a binary search.
func (lb *LockedBundle) Provides(path string) bool {
	i := sort.SearchStrings(lb.Files, path)
	return i < len(lb.Files) && lb.Files[i] == path
}

// Lockfile is the ordered record of a fully resolved workspace.
// Dependencies always precede the bundles that declared them, and the
// workspace's own bundle is the last entry.
type Lockfile struct {
	Version int            `yaml:"version"`
	Bundles []LockedBundle `yaml:"bundles"`
}

// LockfileVersion is the current on-disk lockfile format version.
const LockfileVersion = 1

// Find returns the locked bundle with the given name, or nil.
func (lf *Lockfile) Find(name string) *LockedBundle {
	for i := range lf.Bundles {
		if lf.Bundles[i].Name == name {
			return &lf.Bundles[i]
		}
	}
	return nil
}

// WorkspaceBundle returns the workspace's own bundle (always the last
// entry), or nil for an empty lockfile.
func (lf *Lockfile) WorkspaceBundle() *LockedBundle {
	if len(lf.Bundles) == 0 {
		return nil
	}
	return &lf.Bundles[len(lf.Bundles)-1]
}
