package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Permissions applied to everything the vault creates.
var (
	PermFile os.FileMode = 0o644
	PermDir  os.FileMode = 0o755
)

// Copies are staged under tempPrefix + random + tempSuffix next to the
// destination.
const (
	tempPrefix = ".cloverdrive-"
	tempSuffix = ".tmp"
)

// IsTemp reports whether name (a base name or path) is an in-flight or
// abandoned copy staged by Copy.
func IsTemp(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, tempPrefix) && strings.HasSuffix(base, tempSuffix)
}

// rename is swapped in tests to simulate a cross-volume move.
var rename = os.Rename

// LocalFS implements FileSystem using the local filesystem.
type LocalFS struct{}

// NewLocalFS creates a LocalFS.
func NewLocalFS() *LocalFS {
	return &LocalFS{}
}

// Stat returns metadata for the file or directory at path.
func (l *LocalFS) Stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	fi := FileInfo{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	fi.Inode, fi.HasInode = inode(info)
	return fi, nil
}

// ReadDir lists the immediate children of the directory at path.
func (l *LocalFS) ReadDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	result := make([]DirEntry, len(entries))
	for i, e := range entries {
		result[i] = DirEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
		}
	}
	return result, nil
}

// ReadFile reads the contents of the file at path.
func (l *LocalFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MkdirAll creates path and any missing parents.
func (l *LocalFS) MkdirAll(path string) error {
	return os.MkdirAll(path, PermDir)
}

// Copy copies the regular file src to dst, replacing dst if it exists.
// The bytes are written to a temporary file next to dst and renamed into
// place, so dst is either the old file or the complete new one.
func (l *LocalFS) Copy(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("copy %s: is a directory", src)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), tempPrefix+"*"+tempSuffix)
	if err != nil {
		return 0, fmt.Errorf("create temp for %s: %w", dst, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, in)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("close temp for %s: %w", dst, err)
	}
	if err := os.Chmod(tmpName, PermFile); err != nil {
		os.Remove(tmpName)
		return 0, err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("rename temp to %s: %w", dst, err)
	}
	return n, nil
}

// Move moves src to dst, replacing dst if it exists.
// The rename system call is used first. If src and dst are on different
// volumes, the file is copied and the source removed once the copy is in place.
func (l *LocalFS) Move(src, dst string) error {
	err := rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("move %s: cannot move a directory across volumes", src)
	}
	if _, err := l.Copy(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// Remove deletes the file or directory tree at path.
// A path that does not exist is reported as os.ErrNotExist.
func (l *LocalFS) Remove(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return err
	}
	return os.RemoveAll(path)
}
