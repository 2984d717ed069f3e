//go:build windows

package store

import (
	"os"
	"path/filepath"
	"syscall"
)

// Windows has no direct equivalent of the Linux immutable-file attribute at
// the single-call level the rest of this package uses; a full deny-ACL
// requires SetNamedSecurityInfo with a constructed ACL. As an approximation
// that still prevents accidental writes, every file in the tree is marked
// read-only.
func imposeImmutability(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ptr, err := syscall.UTF16PtrFromString(path)
		if err != nil {
			return nil
		}
		_ = syscall.SetFileAttributes(ptr, syscall.FILE_ATTRIBUTE_READONLY)
		return nil
	})
}

func clearImmutability(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ptr, err := syscall.UTF16PtrFromString(path)
		if err != nil {
			return nil
		}
		_ = syscall.SetFileAttributes(ptr, syscall.FILE_ATTRIBUTE_NORMAL)
		return nil
	})
}
