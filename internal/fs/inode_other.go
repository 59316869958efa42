//go:build !unix

package fs

import "os"

// inode numbers are not exposed through os.FileInfo on this platform.
func inode(os.FileInfo) (uint64, bool) {
	return 0, false
}
