package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CollisionPolicy decides what happens when an upload, trash or restore
// targets a name that already exists in the destination root.
type CollisionPolicy string

const (
	// CollisionOverwrite replaces the existing entry (last write wins).
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionRename keeps both by appending " (n)" before the extension.
	CollisionRename CollisionPolicy = "rename"
	// CollisionReject refuses the operation with ErrCollision.
	CollisionReject CollisionPolicy = "reject"
)

// ParseCollisionPolicy parses a policy name; empty means overwrite.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch p := CollisionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CollisionOverwrite, nil
	case CollisionOverwrite, CollisionRename, CollisionReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q", s)
	}
}

// maxRenameAttempts bounds the suffix search for CollisionRename.
const maxRenameAttempts = 10000

// destination picks the path name should land at inside dir.
func (v *Vault) destination(dir, name string) (string, error) {
	dst := filepath.Join(dir, name)
	if v.collision == CollisionOverwrite {
		return dst, nil
	}

	taken, err := v.exists(dst)
	if err != nil || !taken {
		return dst, err
	}
	if v.collision == CollisionReject {
		return "", fmt.Errorf("%w: %s", ErrCollision, dst)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if ext == name {
		stem, ext = name, ""
	}
	for n := 1; n <= maxRenameAttempts; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		taken, err := v.exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free name for %s", ErrCollision, dst)
}

func (v *Vault) exists(path string) (bool, error) {
	_, err := v.fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", ErrTransfer, err)
}
