package types

import (
	"io/fs"
)

// FS is the filesystem interface required for augent operations.
// The OS-backed implementation lives in pkg/filesystem; tests use the
// in-memory implementation from pkg/testutil.
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Mutations
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
}

// Pather provides the filesystem locations augent reads and writes.
type Pather interface {
	// WorkspaceRoot returns the workspace directory being operated on.
	WorkspaceRoot() string

	// ManifestPath, LockfilePath and IndexPath locate the three
	// persisted records inside the workspace.
	ManifestPath() string
	LockfilePath() string
	IndexPath() string

	// BundleDir returns the workspace's own bundle directory, the
	// destination for adopted (locally modified) resources.
	BundleDir() string

	// CacheDir returns the shared content-addressed cache root.
	CacheDir() string

	// StateDir returns the per-user state directory (logs, lock files).
	StateDir() string
}
