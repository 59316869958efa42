// Package fs provides the filesystem primitives the vault is built on: stat with
// inode identity, flat directory reads, copies that never expose a half-written
// destination, and moves that fall back to copy+remove across volumes.
package fs

import "time"

// FileInfo holds file metadata.
type FileInfo struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
	// Inode is only meaningful when HasInode is set.
	Inode    uint64
	HasInode bool
}

// DirEntry represents a single directory entry.
type DirEntry struct {
	Name  string
	IsDir bool
}

// FileSystem abstracts the operations the vault performs so tests can
// substitute failing implementations. All paths are absolute.
type FileSystem interface {
	Stat(path string) (FileInfo, error)
	ReadDir(path string) ([]DirEntry, error)
	ReadFile(path string) ([]byte, error)
	MkdirAll(path string) error
	Copy(src, dst string) (int64, error)
	Move(src, dst string) error
	Remove(path string) error
}
