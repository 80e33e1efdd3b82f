package transaction

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/types"
)

// opKind tags one undo-log entry.
type opKind int

const (
	opWrite opKind = iota
	opRemove
	opMkdir
)

// undoEntry captures enough information to invert one filesystem
// mutation: prior content for overwrites, prior existence for creates
// and deletes, and the topmost created directory for mkdir chains.
type undoEntry struct {
	kind    opKind
	path    string
	existed bool
	prior   []byte
	mode    fs.FileMode
}

// recordBackup is the pre-transaction state of one persisted record.
type recordBackup struct {
	path    string
	existed bool
	content []byte
}

// Transaction wraps a mutating operation as an all-or-nothing unit.
// Every filesystem mutation goes through the transaction so it lands in
// the ordered undo log; on failure the log is replayed in reverse and
// the persisted records are restored from their snapshots.
type Transaction struct {
	fs      types.FS
	undo    []undoEntry
	records []recordBackup
	done    bool
	logger  zerolog.Logger
}

// Begin opens a transaction, snapshotting the given record files
// (manifest, lockfile, workspace index) before any mutation.
func Begin(fsys types.FS, recordPaths []string) (*Transaction, error) {
	t := &Transaction{
		fs:     fsys,
		logger: logging.GetLogger("transaction"),
	}
	for _, path := range recordPaths {
		backup := recordBackup{path: path}
		data, err := fsys.ReadFile(path)
		switch {
		case err == nil:
			backup.existed = true
			backup.content = data
		case os.IsNotExist(err):
			// Record absent: rollback removes it if created.
		default:
			return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot snapshot record %s", path)
		}
		t.records = append(t.records, backup)
	}
	return t, nil
}

// WriteFile writes a file through the transaction, creating parent
// directories as needed. The prior content (or prior absence) is
// captured first.
func (t *Transaction) WriteFile(path string, data []byte, perm fs.FileMode) error {
	if err := t.mkdirAll(filepath.Dir(path)); err != nil {
		return err
	}

	entry := undoEntry{kind: opWrite, path: path, mode: perm}
	if prior, err := t.fs.ReadFile(path); err == nil {
		entry.existed = true
		entry.prior = prior
		if info, statErr := t.fs.Stat(path); statErr == nil {
			entry.mode = info.Mode().Perm()
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot capture prior state of %s", path)
	}

	if err := t.fs.WriteFile(path, data, perm); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot write %s", path)
	}
	t.undo = append(t.undo, entry)
	return nil
}

// Remove deletes a file through the transaction. Removing a file that
// does not exist is a no-op.
func (t *Transaction) Remove(path string) error {
	prior, err := t.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot capture prior state of %s", path)
	}
	mode := fs.FileMode(0644)
	if info, statErr := t.fs.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	if err := t.fs.Remove(path); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot remove %s", path)
	}
	t.undo = append(t.undo, undoEntry{kind: opRemove, path: path, existed: true, prior: prior, mode: mode})
	return nil
}

// RemoveDirIfEmpty prunes a directory when it has no entries left.
// Used after uninstalls; never called on platform or workspace roots.
func (t *Transaction) RemoveDirIfEmpty(path string) (bool, error) {
	entries, err := t.fs.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrFilesystem, "cannot read directory %s", path)
	}
	if len(entries) > 0 {
		return false, nil
	}
	if err := t.fs.Remove(path); err != nil {
		return false, errors.Wrapf(err, errors.ErrFilesystem, "cannot prune directory %s", path)
	}
	t.undo = append(t.undo, undoEntry{kind: opMkdir, path: path, existed: true})
	return true, nil
}

// mkdirAll creates dir and its parents, logging the topmost created
// directory so rollback can prune the whole chain.
func (t *Transaction) mkdirAll(dir string) error {
	if _, err := t.fs.Stat(dir); err == nil {
		return nil
	}

	// Find the deepest existing ancestor.
	topCreated := dir
	for parent := filepath.Dir(topCreated); parent != topCreated; parent = filepath.Dir(parent) {
		if _, err := t.fs.Stat(parent); err == nil {
			break
		}
		topCreated = parent
	}

	if err := t.fs.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "cannot create directory %s", dir)
	}
	t.undo = append(t.undo, undoEntry{kind: opMkdir, path: topCreated})
	return nil
}

// Commit ends the transaction successfully: the undo log and record
// snapshots are discarded.
func (t *Transaction) Commit() {
	t.done = true
	t.logger.Debug().Int("mutations", len(t.undo)).Msg("Transaction committed")
	t.undo = nil
	t.records = nil
}

// Rollback replays the undo log in reverse order, then restores the
// record snapshots, leaving the workspace indistinguishable from its
// pre-operation state.
func (t *Transaction) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for i := len(t.undo) - 1; i >= 0; i-- {
		entry := t.undo[i]
		switch entry.kind {
		case opWrite:
			if entry.existed {
				keep(t.fs.WriteFile(entry.path, entry.prior, entry.mode))
			} else {
				keep(t.fs.Remove(entry.path))
			}
		case opRemove:
			keep(t.fs.MkdirAll(filepath.Dir(entry.path), 0755))
			keep(t.fs.WriteFile(entry.path, entry.prior, entry.mode))
		case opMkdir:
			if entry.existed {
				// Inverted prune: recreate the directory.
				keep(t.fs.MkdirAll(entry.path, 0755))
			} else {
				keep(t.fs.RemoveAll(entry.path))
			}
		}
	}

	for _, backup := range t.records {
		if backup.existed {
			keep(t.fs.MkdirAll(filepath.Dir(backup.path), 0755))
			keep(t.fs.WriteFile(backup.path, backup.content, 0644))
		} else if _, err := t.fs.Stat(backup.path); err == nil {
			keep(t.fs.Remove(backup.path))
		}
	}

	if firstErr != nil {
		return errors.Wrap(firstErr, errors.ErrFilesystem, "rollback incomplete")
	}
	t.logger.Debug().Msg("Transaction rolled back")
	return nil
}

// Run executes fn inside a transaction over the given record files.
// On success the transaction commits; on any error it rolls back before
// the error surfaces.
func Run(fsys types.FS, recordPaths []string, fn func(*Transaction) error) error {
	t, err := Begin(fsys, recordPaths)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return errors.Wrapf(rbErr, errors.ErrFilesystem,
				"operation failed (%v) and rollback did not fully restore the workspace", err)
		}
		return err
	}
	t.Commit()
	return nil
}
