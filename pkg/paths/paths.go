package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/asyrjasalo/augent/pkg/errors"
)

// Record file names inside a workspace.
const (
	ManifestName = "augent.toml"
	LockfileName = "augent.lock"
	IndexName    = "augent.index"

	// WorkspaceBundleDir holds the workspace's own bundle: locally
	// authored resources and adopted (modified) files in universal form.
	WorkspaceBundleDir = ".augent"
)

// Paths resolves every filesystem location augent reads or writes for
// one workspace. It implements types.Pather.
type Paths struct {
	workspaceRoot string
	cacheDir      string
	stateDir      string
}

// New creates a Paths rooted at the given workspace directory. An empty
// root means the current working directory. Cache and state locations
// honor the XDG base directory spec.
func New(workspaceRoot string) (*Paths, error) {
	if workspaceRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrFilesystem, "cannot determine working directory")
		}
		workspaceRoot = cwd
	}

	abs, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "invalid workspace root %q", workspaceRoot)
	}

	return &Paths{
		workspaceRoot: abs,
		cacheDir:      filepath.Join(xdg.CacheHome, "augent"),
		stateDir:      filepath.Join(xdg.StateHome, "augent"),
	}, nil
}

// NewWithDirs creates a Paths with explicit cache and state directories.
// Used by tests and by AUGENT_CACHE_DIR-style overrides.
func NewWithDirs(workspaceRoot, cacheDir, stateDir string) *Paths {
	return &Paths{
		workspaceRoot: workspaceRoot,
		cacheDir:      cacheDir,
		stateDir:      stateDir,
	}
}

func (p *Paths) WorkspaceRoot() string {
	return p.workspaceRoot
}

func (p *Paths) ManifestPath() string {
	return filepath.Join(p.workspaceRoot, ManifestName)
}

func (p *Paths) LockfilePath() string {
	return filepath.Join(p.workspaceRoot, LockfileName)
}

func (p *Paths) IndexPath() string {
	return filepath.Join(p.workspaceRoot, IndexName)
}

func (p *Paths) BundleDir() string {
	return filepath.Join(p.workspaceRoot, WorkspaceBundleDir)
}

func (p *Paths) CacheDir() string {
	return p.cacheDir
}

func (p *Paths) StateDir() string {
	return p.stateDir
}

// LockPath returns the advisory lock file location for this workspace.
// Lock files live in the state directory, keyed by a slug of the
// workspace path, so read-only workspaces can still be locked.
func (p *Paths) LockPath() string {
	slug := ""
	for _, r := range p.workspaceRoot {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			slug += string(r)
		default:
			slug += "-"
		}
	}
	return filepath.Join(p.stateDir, "locks", slug+".lock")
}
