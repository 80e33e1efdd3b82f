package workspace

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/paths"
)

// Lock is the workspace-scoped advisory lock serializing all writers.
// It is held for the full mutating operation and released
// unconditionally when the operation resolves; if the process dies the
// operating system releases it.
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes the exclusive lock for the workspace. When the lock
// is held by another process: with wait it blocks until released,
// without it the call fails with a lock-contention error.
//
// The lock file lives in the state directory, so locking never mutates
// the workspace itself.
func AcquireLock(p *paths.Paths, wait bool) (*Lock, error) {
	logger := logging.GetLogger("workspace.lock")
	path := p.LockPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot create lock directory")
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot open lock file %s", path)
	}

	err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == unix.EWOULDBLOCK {
		if !wait {
			_ = file.Close()
			return nil, errors.Newf(errors.ErrLockContention,
				"another augent operation holds the lock for %s", p.WorkspaceRoot())
		}
		logger.Info().Str("workspace", p.WorkspaceRoot()).Msg("Waiting for workspace lock")
		err = unix.Flock(int(file.Fd()), unix.LOCK_EX)
	}
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot lock %s", path)
	}

	logger.Debug().Str("workspace", p.WorkspaceRoot()).Msg("Acquired workspace lock")
	return &Lock{file: file, path: path}, nil
}

// Release drops the lock. Safe to call exactly once on every exit path.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
