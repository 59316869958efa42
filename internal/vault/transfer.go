package vault

import (
	"fmt"
	"path/filepath"

	"github.com/CageChen/cloverdrive/internal/logging"
	"github.com/CageChen/cloverdrive/internal/metrics"
)

// SaveDialog asks the user where a download should be written. It reports
// false when the user cancels.
type SaveDialog interface {
	SaveLocation(suggestedName string) (string, bool)
}

// SaveDialogFunc adapts a function to SaveDialog.
type SaveDialogFunc func(suggestedName string) (string, bool)

// SaveLocation calls f.
func (f SaveDialogFunc) SaveLocation(suggestedName string) (string, bool) {
	return f(suggestedName)
}

// Upload copies each source file into the vault under its base name.
// It reports false when sources is empty. The first failed copy aborts the
// call; files copied before it stay in the vault.
func (v *Vault) Upload(sources []string) (bool, error) {
	if len(sources) == 0 {
		return false, nil
	}

	for _, src := range sources {
		if src == "" {
			return false, fmt.Errorf("%w: empty source path", ErrTransfer)
		}
		dst, err := v.destination(v.roots.Vault, filepath.Base(src))
		if err != nil {
			return false, err
		}
		n, err := v.fs.Copy(src, dst)
		if err != nil {
			return false, fmt.Errorf("%w: upload %s: %w", ErrTransfer, src, err)
		}
		metrics.RecordUpload(n)
		v.log.Info("uploaded", logging.String("source", src), logging.Path(dst))
	}
	return true, nil
}

// Download copies a vault or trash entry to the location chosen through dlg.
// It reports false when the source is gone or the dialog is cancelled.
func (v *Vault) Download(source, suggestedName string, dlg SaveDialog) (bool, error) {
	src, _, err := v.locate(source)
	if err != nil {
		return false, err
	}
	found, err := v.exists(src)
	if err != nil || !found {
		return false, err
	}

	if suggestedName == "" {
		suggestedName = filepath.Base(src)
	}
	dst, ok := dlg.SaveLocation(suggestedName)
	if !ok || dst == "" {
		return false, nil
	}

	n, err := v.fs.Copy(src, dst)
	if err != nil {
		return false, fmt.Errorf("%w: download %s: %w", ErrTransfer, src, err)
	}
	metrics.RecordDownload(n)
	v.log.Info("downloaded", logging.Path(src), logging.String("destination", dst))
	return true, nil
}
