package localstore

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/hack-pad/hackpadfs"
	osfs "github.com/hack-pad/hackpadfs/os"
)

// FSStorage stores each key as a file in one directory of a hackpadfs.FS.
// File names are the path-escaped key. Writes go through a hidden temp file
// and a rename when the filesystem supports it, so readers never observe a
// half-written document.
type FSStorage struct {
	fs    hackpadfs.FS
	dir   string
	osDir string
}

// NewFSStorage uses dir inside fsys, creating it if needed.
func NewFSStorage(fsys hackpadfs.FS, dir string) (*FSStorage, error) {
	dir = path.Clean(dir)
	if err := hackpadfs.MkdirAll(fsys, dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &FSStorage{fs: fsys, dir: dir}, nil
}

// OpenDir opens a storage directory on the host filesystem.
func OpenDir(osDir string) (*FSStorage, error) {
	abs, err := filepath.Abs(osDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", osDir, err)
	}
	fsys := osfs.NewFS()
	p, err := fsys.FromOSPath(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", abs, err)
	}
	s, err := NewFSStorage(fsys, p)
	if err != nil {
		return nil, err
	}
	s.osDir = abs
	return s, nil
}

// OSDir returns the host directory backing the store, or "" when the store is
// not on the host filesystem.
func (s *FSStorage) OSDir() string {
	return s.osDir
}

// FileName returns the file name used for key.
func FileName(key string) string {
	return url.PathEscape(key)
}

// KeyFromFileName reverses FileName. Hidden and temp files are rejected.
func KeyFromFileName(name string) (string, bool) {
	if name == "" || strings.HasPrefix(name, ".") {
		return "", false
	}
	key, err := url.PathUnescape(name)
	if err != nil {
		return "", false
	}
	return key, true
}

func (s *FSStorage) file(key string) string {
	return path.Join(s.dir, FileName(key))
}

// GetItem implements Storage.
func (s *FSStorage) GetItem(key string) ([]byte, error) {
	data, err := hackpadfs.ReadFile(s.fs, s.file(key))
	if errors.Is(err, hackpadfs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// SetItem implements Storage.
func (s *FSStorage) SetItem(key string, value []byte) error {
	target := s.file(key)
	tmp := path.Join(s.dir, "."+FileName(key)+".tmp")

	if err := hackpadfs.WriteFullFile(s.fs, tmp, value, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := hackpadfs.Rename(s.fs, tmp, target); err != nil {
		// Filesystems without rename get a direct write.
		_ = hackpadfs.Remove(s.fs, tmp)
		if err := hackpadfs.WriteFullFile(s.fs, target, value, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	return nil
}

// RemoveItem implements Storage.
func (s *FSStorage) RemoveItem(key string) error {
	err := hackpadfs.Remove(s.fs, s.file(key))
	if err != nil && !errors.Is(err, hackpadfs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Keys implements Storage.
func (s *FSStorage) Keys() ([]string, error) {
	entries, err := hackpadfs.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := KeyFromFileName(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close implements Storage.
func (s *FSStorage) Close() error {
	return nil
}
