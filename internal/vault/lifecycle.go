package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CageChen/cloverdrive/internal/logging"
)

// Delete permanently removes a vault or trash entry. A path that no longer
// exists reports false, so deleting twice is harmless.
func (v *Vault) Delete(path string) (bool, error) {
	target, _, err := v.locate(path)
	if err != nil {
		return false, err
	}
	if err := v.fs.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: delete %s: %w", ErrTransfer, target, err)
	}
	v.log.Info("deleted", logging.Path(target))
	return true, nil
}

// MoveToTrash moves a vault entry into the trash root under its base name.
func (v *Vault) MoveToTrash(path string) (bool, error) {
	return v.relocate(path, inVault, v.roots.Trash)
}

// RestoreFromTrash moves a trash entry back into the vault root.
func (v *Vault) RestoreFromTrash(path string) (bool, error) {
	return v.relocate(path, inTrash, v.roots.Vault)
}

func (v *Vault) relocate(path string, from location, toDir string) (bool, error) {
	src, loc, err := v.locate(path)
	if err != nil {
		return false, err
	}
	if loc != from {
		return false, fmt.Errorf("%w: %s is not in the %s", ErrOutsideVault, src, from)
	}

	found, err := v.exists(src)
	if err != nil || !found {
		return false, err
	}

	dst, err := v.destination(toDir, filepath.Base(src))
	if err != nil {
		return false, err
	}
	if err := v.fs.Move(src, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: move %s -> %s: %w", ErrTransfer, src, dst, err)
	}
	v.log.Info("moved", logging.Path(src), logging.String("destination", dst))
	return true, nil
}

func (l location) String() string {
	switch l {
	case inVault:
		return "vault"
	case inTrash:
		return "trash"
	}
	return "unknown"
}

// Wipe removes every entry of both roots, leaving the roots themselves in
// place. Entries that cannot be removed are logged and skipped; the error is
// only set when a root cannot be created or read.
func (v *Vault) Wipe() (bool, error) {
	var errs []error
	for _, root := range []string{v.roots.Vault, v.roots.Trash} {
		if err := v.wipeRoot(root); err != nil {
			v.log.Error("wipe failed", logging.Path(root), logging.Err(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	v.log.Info("vault wiped")
	return true, nil
}

func (v *Vault) wipeRoot(root string) error {
	if err := v.fs.MkdirAll(root); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	entries, err := v.fs.ReadDir(root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name)
		if err := v.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			v.log.Warn("cannot remove entry", logging.Path(path), logging.Err(err))
		}
	}
	return nil
}

// Opener hands a file to the operating system's default application.
type Opener interface {
	Open(target string) error
}

// Open launches the default application for a vault or trash entry.
func (v *Vault) Open(path string, opener Opener) (bool, error) {
	target, _, err := v.locate(path)
	if err != nil {
		return false, err
	}
	found, err := v.exists(target)
	if err != nil || !found {
		return false, err
	}
	if err := opener.Open(target); err != nil {
		return false, fmt.Errorf("open %s: %w", target, err)
	}
	return true, nil
}
