package vault

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/CageChen/cloverdrive/internal/fs"
)

// FileRecord is one entry of a listing. It is computed on every listing and
// never stored; Path is the identity every operation takes.
type FileRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Path       string    `json:"path"`
	Extension  string    `json:"type"`
	IsDir      bool      `json:"isDir"`
	InTrash    bool      `json:"inTrash"`
}

func newRecord(path string, info fs.FileInfo, inTrash bool) FileRecord {
	id := info.Name
	if info.HasInode {
		id = strconv.FormatUint(info.Inode, 10)
	}
	return FileRecord{
		ID:         id,
		Name:       info.Name,
		Size:       info.Size,
		ModifiedAt: info.ModTime,
		Path:       path,
		Extension:  Extension(info.Name),
		IsDir:      info.IsDir,
		InTrash:    inTrash,
	}
}

// Extension returns the lower-cased extension of name without the leading dot.
// Dotfiles such as ".env" have no extension.
func Extension(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}
