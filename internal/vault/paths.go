package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default directory names under the application data directory.
const (
	DefaultVaultDir = "CloverVault"
	DefaultTrashDir = "CloverTrash"
)

// Roots holds the absolute locations of the vault and trash directories.
type Roots struct {
	Vault string `json:"vault"`
	Trash string `json:"trash"`
}

// ResolveRoots derives the vault and trash roots from the application data
// directory. It does not touch the disk; call Ensure before use.
func ResolveRoots(dataDir, vaultName, trashName string) (Roots, error) {
	if dataDir == "" {
		return Roots{}, fmt.Errorf("%w: data directory is not set", ErrStorageUnavailable)
	}
	if vaultName == "" {
		vaultName = DefaultVaultDir
	}
	if trashName == "" {
		trashName = DefaultTrashDir
	}
	for _, name := range []string{vaultName, trashName} {
		if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return Roots{}, fmt.Errorf("%w: invalid directory name %q", ErrStorageUnavailable, name)
		}
	}
	if vaultName == trashName {
		return Roots{}, fmt.Errorf("%w: vault and trash must be different directories", ErrStorageUnavailable)
	}

	base, err := filepath.Abs(dataDir)
	if err != nil {
		return Roots{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return Roots{
		Vault: filepath.Join(base, vaultName),
		Trash: filepath.Join(base, trashName),
	}, nil
}

// Ensure creates both roots if they are missing and returns them with
// symlinks resolved. It is idempotent.
func (r Roots) Ensure() (Roots, error) {
	vault, err := ensureDir(r.Vault)
	if err != nil {
		return Roots{}, err
	}
	trash, err := ensureDir(r.Trash)
	if err != nil {
		return Roots{}, err
	}
	return Roots{Vault: vault, Trash: trash}, nil
}

func ensureDir(path string) (string, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("%w: %s is not a directory", ErrStorageUnavailable, path)
	case err != nil && !os.IsNotExist(err):
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	case err != nil:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
	}

	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return canonical, nil
}
