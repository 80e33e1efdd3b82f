package testutil

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryFS implements types.FS with in-memory storage. It supports
// error injection per path for exercising rollback paths.
type MemoryFS struct {
	mu    sync.RWMutex
	files map[string]*fileNode

	// Error injection: operations touching these paths fail.
	errorPaths map[string]error
}

// fileNode represents a file or directory in memory
type fileNode struct {
	name    string
	mode    fs.FileMode
	modTime time.Time
	content []byte
	isDir   bool
}

// NewMemoryFS creates a new in-memory filesystem with a root directory.
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		files: map[string]*fileNode{
			"/": {name: "/", mode: 0755 | fs.ModeDir, modTime: time.Now(), isDir: true},
		},
		errorPaths: make(map[string]error),
	}
}

// InjectError makes every operation on path fail with err.
func (m *MemoryFS) InjectError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorPaths[normalize(path)] = err
}

func normalize(path string) string {
	if !filepath.IsAbs(path) {
		path = "/" + path
	}
	return filepath.Clean(path)
}

func (m *MemoryFS) injected(path string) error {
	if err, ok := m.errorPaths[path]; ok {
		return err
	}
	return nil
}

func (m *MemoryFS) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path := normalize(name)
	if err := m.injected(path); err != nil {
		return nil, err
	}
	node, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return nodeInfo{node}, nil
}

func (m *MemoryFS) Lstat(name string) (fs.FileInfo, error) {
	return m.Stat(name)
}

func (m *MemoryFS) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path := normalize(name)
	if err := m.injected(path); err != nil {
		return nil, err
	}
	node, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if node.isDir {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	out := make([]byte, len(node.content))
	copy(out, node.content)
	return out, nil
}

func (m *MemoryFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := normalize(name)
	if err := m.injected(path); err != nil {
		return err
	}
	parent := filepath.Dir(path)
	node, ok := m.files[parent]
	if !ok || !node.isDir {
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	content := make([]byte, len(data))
	copy(content, data)
	m.files[path] = &fileNode{
		name:    filepath.Base(path),
		mode:    perm,
		modTime: time.Now(),
		content: content,
	}
	return nil
}

func (m *MemoryFS) MkdirAll(path string, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	abs := normalize(path)
	if err := m.injected(abs); err != nil {
		return err
	}
	if node, ok := m.files[abs]; ok {
		if node.isDir {
			return nil
		}
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
	}

	// Create missing ancestors root-down.
	segments := strings.Split(strings.Trim(abs, "/"), "/")
	current := "/"
	for _, seg := range segments {
		current = filepath.Join(current, seg)
		if node, ok := m.files[current]; ok {
			if !node.isDir {
				return &fs.PathError{Op: "mkdir", Path: current, Err: fs.ErrExist}
			}
			continue
		}
		m.files[current] = &fileNode{
			name:    seg,
			mode:    perm | fs.ModeDir,
			modTime: time.Now(),
			isDir:   true,
		}
	}
	return nil
}

func (m *MemoryFS) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path := normalize(name)
	if err := m.injected(path); err != nil {
		return nil, err
	}
	node, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if !node.isDir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	var entries []fs.DirEntry
	for p, child := range m.files {
		if p != path && filepath.Dir(p) == path {
			entries = append(entries, dirEntry{child})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (m *MemoryFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := normalize(name)
	if err := m.injected(path); err != nil {
		return err
	}
	node, ok := m.files[path]
	if !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	if node.isDir {
		for p := range m.files {
			if p != path && strings.HasPrefix(p, path+"/") {
				return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
			}
		}
	}
	delete(m.files, path)
	return nil
}

func (m *MemoryFS) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	abs := normalize(path)
	if err := m.injected(abs); err != nil {
		return err
	}
	for p := range m.files {
		if p == abs || strings.HasPrefix(p, abs+"/") {
			delete(m.files, p)
		}
	}
	return nil
}

func (m *MemoryFS) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := normalize(oldpath)
	to := normalize(newpath)
	if err := m.injected(from); err != nil {
		return err
	}
	if err := m.injected(to); err != nil {
		return err
	}
	if _, ok := m.files[from]; !ok {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}

	moved := make(map[string]*fileNode)
	for p, node := range m.files {
		if p == from || strings.HasPrefix(p, from+"/") {
			moved[to+strings.TrimPrefix(p, from)] = node
			delete(m.files, p)
		}
	}
	// Renaming over an existing tree replaces it.
	for p := range m.files {
		if p == to || strings.HasPrefix(p, to+"/") {
			delete(m.files, p)
		}
	}
	for p, node := range moved {
		node.name = filepath.Base(p)
		m.files[p] = node
	}
	return nil
}

// nodeInfo adapts fileNode to fs.FileInfo.
type nodeInfo struct {
	node *fileNode
}

func (i nodeInfo) Name() string { return i.node.name }
func (i nodeInfo) Size() int64  { return int64(len(i.node.content)) }
func (i nodeInfo) Mode() fs.FileMode {
	if i.node.isDir {
		return i.node.mode | fs.ModeDir
	}
	return i.node.mode
}
func (i nodeInfo) ModTime() time.Time { return i.node.modTime }
func (i nodeInfo) IsDir() bool        { return i.node.isDir }
func (i nodeInfo) Sys() interface{}   { return nil }

// dirEntry adapts fileNode to fs.DirEntry.
type dirEntry struct {
	node *fileNode
}

func (e dirEntry) Name() string { return e.node.name }
func (e dirEntry) IsDir() bool  { return e.node.isDir }
func (e dirEntry) Type() fs.FileMode {
	if e.node.isDir {
		return fs.ModeDir
	}
	return 0
}
func (e dirEntry) Info() (fs.FileInfo, error) { return nodeInfo{e.node}, nil }
