package types

// SnapshotFile is one file inside a cached bundle snapshot: its
// universal path and the hex-encoded 256-bit hash of its content.
type SnapshotFile struct {
	Path string `yaml:"path"`
	Hash string `yaml:"hash"`
}

// Snapshot is an immutable, content-addressed copy of a bundle's file
// tree at an exact revision. Root points at the on-disk snapshot
// directory; Files is sorted by path.
type Snapshot struct {
	Identity string         `yaml:"identity"`
	Revision string         `yaml:"revision"`
	Root     string         `yaml:"-"`
	Files    []SnapshotFile `yaml:"files"`
}

// FileHash returns the stored content hash for a universal path and
// whether the snapshot contains it.
func (s *Snapshot) FileHash(path string) (string, bool) {
	for _, f := range s.Files {
		if f.Path == path {
			return f.Hash, true
		}
	}
	return "", false
}

// Paths returns the snapshot's universal paths, in sorted order.
func (s *Snapshot) Paths() []string {
	out := make([]string, len(s.Files))
	for i, f := range s.Files {
		out[i] = f.Path
	}
	return out
}
