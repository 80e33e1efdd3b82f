package types

import "sort"

// IndexEntry records which bundle's copy of a universal path is the
// effective one for a platform, and where it was written. For a fixed
// (Path, Platform) pair at most one entry exists at any time.
type IndexEntry struct {
	Path     string `yaml:"path"`
	Platform string `yaml:"platform"`
	Bundle   string `yaml:"bundle"`
	Output   string `yaml:"output"`
}

// IndexVersion is the current on-disk workspace index format version.
const IndexVersion = 1

// WorkspaceIndex is the full set of IndexEntry records for a workspace:
// the canonical record of what is actually installed, where, and from
// which bundle.
type WorkspaceIndex struct {
	Version int          `yaml:"version"`
	Entries []IndexEntry `yaml:"entries"`
}

// Lookup returns the entry for (path, platform), or nil.
func (idx *WorkspaceIndex) Lookup(path, platform string) *IndexEntry {
	for i := range idx.Entries {
		if idx.Entries[i].Path == path && idx.Entries[i].Platform == platform {
			return &idx.Entries[i]
		}
	}
	return nil
}

// Put inserts or replaces the entry for (entry.Path, entry.Platform).
func (idx *WorkspaceIndex) Put(entry IndexEntry) {
	if existing := idx.Lookup(entry.Path, entry.Platform); existing != nil {
		*existing = entry
		return
	}
	idx.Entries = append(idx.Entries, entry)
}

// Remove deletes the entry for (path, platform) if present.
func (idx *WorkspaceIndex) Remove(path, platform string) {
	for i := range idx.Entries {
		if idx.Entries[i].Path == path && idx.Entries[i].Platform == platform {
			idx.Entries = append(idx.Entries[:i], idx.Entries[i+1:]...)
			return
		}
	}
}

// ByBundle returns all entries owned by the named bundle.
func (idx *WorkspaceIndex) ByBundle(bundle string) []IndexEntry {
	var out []IndexEntry
	for _, e := range idx.Entries {
		if e.Bundle == bundle {
			out = append(out, e)
		}
	}
	return out
}

// Sort orders entries by (path, platform) so serialization is
// deterministic.
func (idx *WorkspaceIndex) Sort() {
	sort.Slice(idx.Entries, func(i, j int) bool {
		if idx.Entries[i].Path != idx.Entries[j].Path {
			return idx.Entries[i].Path < idx.Entries[j].Path
		}
		return idx.Entries[i].Platform < idx.Entries[j].Platform
	})
}
