package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SourceKind discriminates the two ways a bundle's content can be located.
type SourceKind string

const (
	// SourceDirectory is a bundle rooted at a local directory.
	SourceDirectory SourceKind = "directory"

	// SourceRemote is a bundle fetched from a remote origin at a ref.
	SourceRemote SourceKind = "remote"
)

// BundleSource describes where a bundle's content comes from. Once
// Revision is set the value is immutable: the same (identity, revision)
// pair always names the same file tree.
type BundleSource struct {
	Kind SourceKind `yaml:"kind" toml:"kind"`

	// Path is the directory root for SourceDirectory sources.
	Path string `yaml:"path,omitempty" toml:"path,omitempty"`

	// Origin, Ref and Subpath locate a SourceRemote bundle.
	Origin  string `yaml:"origin,omitempty" toml:"origin,omitempty"`
	Ref     string `yaml:"ref,omitempty" toml:"ref,omitempty"`
	Subpath string `yaml:"subpath,omitempty" toml:"subpath,omitempty"`

	// Revision is the exact revision id the source resolved to.
	// Empty until resolution.
	Revision string `yaml:"revision,omitempty" toml:"revision,omitempty"`
}

// Identity returns the source's stable identity, independent of the
// resolved revision. Two sources with equal identities refer to the
// same upstream location.
func (s BundleSource) Identity() string {
	switch s.Kind {
	case SourceDirectory:
		return "dir:" + filepath.Clean(s.Path)
	case SourceRemote:
		id := "remote:" + s.Origin
		if s.Subpath != "" {
			id += "//" + s.Subpath
		}
		return id
	default:
		return string(s.Kind) + ":?"
	}
}

// Slug returns a filesystem-safe form of the identity, used as the
// first component of a cache key.
func (s BundleSource) Slug() string {
	id := s.Identity()
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// Equal reports whether two sources name the same upstream location.
// Revision is deliberately excluded: a moved ref is still the same source.
func (s BundleSource) Equal(other BundleSource) bool {
	return s.Identity() == other.Identity()
}

func (s BundleSource) String() string {
	switch s.Kind {
	case SourceDirectory:
		return s.Path
	case SourceRemote:
		out := s.Origin
		if s.Subpath != "" {
			out += "//" + s.Subpath
		}
		if s.Ref != "" {
			out += "@" + s.Ref
		}
		return out
	default:
		return fmt.Sprintf("unknown(%s)", string(s.Kind))
	}
}
