package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var imageTypes = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

// MaxPreviewSize bounds the images DataURL will inline.
var MaxPreviewSize int64 = 10 << 20

// IsImage reports whether the extension is one DataURL can preview.
func IsImage(ext string) bool {
	return imageTypes[ext]
}

// DataURL returns an image entry inlined as a data URL for previews.
func (v *Vault) DataURL(path string) (string, error) {
	target, _, err := v.locate(path)
	if err != nil {
		return "", err
	}
	ext := Extension(filepath.Base(target))
	if !IsImage(ext) {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	info, err := v.fs.Stat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, target)
		}
		return "", fmt.Errorf("%w: stat %s: %w", ErrTransfer, target, err)
	}
	if info.IsDir {
		return "", fmt.Errorf("%w: %s is a directory", ErrUnsupported, target)
	}
	if info.Size > MaxPreviewSize {
		return "", fmt.Errorf("%w: %s is too large to preview", ErrUnsupported, target)
	}

	data, err := v.fs.ReadFile(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, target)
		}
		return "", fmt.Errorf("%w: read %s: %w", ErrTransfer, target, err)
	}
	return "data:image/" + ext + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
