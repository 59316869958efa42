package vault

import "errors"

var (
	// ErrStorageUnavailable means a root could not be created or accessed.
	ErrStorageUnavailable = errors.New("vault: storage unavailable")
	// ErrNotFound means the target path vanished.
	ErrNotFound = errors.New("vault: not found")
	// ErrTransfer wraps copy and move I/O failures.
	ErrTransfer = errors.New("vault: transfer failed")
	// ErrOutsideVault rejects paths that are not direct children of the expected root.
	ErrOutsideVault = errors.New("vault: path is outside the vault")
	// ErrCollision is returned under CollisionReject when the destination name is taken.
	ErrCollision = errors.New("vault: destination already exists")
	// ErrUnsupported is returned by DataURL for non-image entries.
	ErrUnsupported = errors.New("vault: unsupported file type")
)
