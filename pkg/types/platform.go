package types

// MergeStrategy selects the conflict-resolution rule applied when a
// transformed resource's target path already has content.
type MergeStrategy string

const (
	// MergeReplace overwrites the target unconditionally.
	MergeReplace MergeStrategy = "replace"

	// MergeShallow merges top-level keys of structured content; values
	// below the top level are replaced per affected key.
	MergeShallow MergeStrategy = "shallow"

	// MergeDeep merges structured content recursively; arrays are
	// concatenated with structural duplicate removal.
	MergeDeep MergeStrategy = "deep"

	// MergeComposite maintains a delimited text block per contributing
	// bundle, replaced in place or appended.
	MergeComposite MergeStrategy = "composite"
)

// Valid reports whether s is one of the four known strategies.
func (s MergeStrategy) Valid() bool {
	switch s {
	case MergeReplace, MergeShallow, MergeDeep, MergeComposite:
		return true
	}
	return false
}

// TransformRule maps universal paths matching a source glob to a
// platform-specific target. Globs support single-segment `*`, recursive
// `**`, and one named capture `{name}` usable in the target.
type TransformRule struct {
	Source    string        `koanf:"source"`
	Target    string        `koanf:"target"`
	Strategy  MergeStrategy `koanf:"strategy"`
	Extension string        `koanf:"extension"`
}

// Platform is a data-defined installation target. New platforms require
// only new data: behavior differences are expressed entirely through
// the ordered rule list and merge strategies.
type Platform struct {
	ID string `koanf:"id"`

	// Root is the platform's output directory, relative to the
	// workspace root.
	Root string `koanf:"root"`

	// Markers are paths whose presence in a workspace marks the
	// platform as in use.
	Markers []string `koanf:"markers"`

	// Fallback platforms are only active when no non-fallback platform
	// is detected.
	Fallback bool `koanf:"fallback"`

	Rules []TransformRule `koanf:"rules"`
}
