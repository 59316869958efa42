package vault

import (
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/CageChen/cloverdrive/internal/fs"
	"github.com/CageChen/cloverdrive/internal/logging"
)

// ListDirectory returns a record for every direct child of root, in the order
// the filesystem enumerates them. A missing or unreadable root yields an empty
// listing, and entries that vanish between the read and the stat are skipped,
// as are staging files of copies in progress or interrupted.
func ListDirectory(fsys fs.FileSystem, root string, inTrash bool) []FileRecord {
	return listDirectory(fsys, root, inTrash, logging.Named("vault"))
}

func listDirectory(fsys fs.FileSystem, root string, inTrash bool, log *zap.Logger) []FileRecord {
	entries, err := fsys.ReadDir(root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("cannot read root", logging.Path(root), logging.Err(err))
		}
		return []FileRecord{}
	}

	records := make([]FileRecord, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name)
		if fs.IsTemp(entry.Name) {
			continue
		}
		info, err := fsys.Stat(path)
		if err != nil {
			log.Debug("skipping entry", logging.Path(path), logging.Err(err))
			continue
		}
		records = append(records, newRecord(path, info, inTrash))
	}
	return records
}
