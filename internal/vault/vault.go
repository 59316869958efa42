// Package vault manages a flat vault directory and its sibling trash
// directory: listing both, copying files in and out, moving them between the
// two roots and deleting them.
//
// The directories are the only state. Every listing is recomputed from disk,
// and every operation addresses entries by absolute path, which must be a
// direct child of one of the two roots.
package vault

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/CageChen/cloverdrive/internal/fs"
	"github.com/CageChen/cloverdrive/internal/logging"
	"github.com/CageChen/cloverdrive/internal/metrics"
)

// Vault performs operations against a pair of roots. It assumes it is the only
// writer; callers serialise mutating calls.
type Vault struct {
	fs        fs.FileSystem
	roots     Roots
	collision CollisionPolicy
	log       *zap.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithFileSystem replaces the local filesystem.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(v *Vault) { v.fs = fsys }
}

// WithCollisionPolicy sets how name collisions are handled.
func WithCollisionPolicy(p CollisionPolicy) Option {
	return func(v *Vault) { v.collision = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Vault) { v.log = l }
}

// New returns a Vault over roots, which should already have been through
// Roots.Ensure.
func New(roots Roots, opts ...Option) *Vault {
	v := &Vault{
		fs:        fs.NewLocalFS(),
		roots:     roots,
		collision: CollisionOverwrite,
		log:       logging.Named("vault"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Roots returns the roots the vault operates on.
func (v *Vault) Roots() Roots {
	return v.roots
}

// Items lists the vault root followed by the trash root.
func (v *Vault) Items() []FileRecord {
	inVault := listDirectory(v.fs, v.roots.Vault, false, v.log)
	inTrash := listDirectory(v.fs, v.roots.Trash, true, v.log)
	metrics.SetItems("vault", len(inVault))
	metrics.SetItems("trash", len(inTrash))
	return append(inVault, inTrash...)
}

type location int

const (
	inVault location = iota + 1
	inTrash
)

// locate checks that path is a direct child of one of the roots and returns
// its cleaned absolute form.
func (v *Vault) locate(path string) (string, location, error) {
	if path == "" {
		return "", 0, fmt.Errorf("%w: empty path", ErrOutsideVault)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrOutsideVault, err)
	}
	switch filepath.Dir(abs) {
	case v.roots.Vault:
		return abs, inVault, nil
	case v.roots.Trash:
		return abs, inTrash, nil
	}
	return "", 0, fmt.Errorf("%w: %s", ErrOutsideVault, path)
}
