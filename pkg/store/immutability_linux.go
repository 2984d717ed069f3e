//go:build linux

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

func imposeImmutability(dir string) error {
	return setImmutableFlag(dir, true)
}

func clearImmutability(dir string) error {
	return setImmutableFlag(dir, false)
}

func setImmutableFlag(dir string, on bool) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()

	flags, err := unix.IoctlGetInt(int(f.Fd()), unix.FS_IOC_GETFLAGS)
	if err != nil {
		// Not every filesystem (tmpfs, overlayfs variants, FUSE) supports the
		// attribute; treat as a best-effort no-op rather than a hard failure.
		return nil
	}
	if on {
		flags |= unix.FS_IMMUTABLE_FL
	} else {
		flags &^= unix.FS_IMMUTABLE_FL
	}
	if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.FS_IOC_SETFLAGS, flags); err != nil {
		return nil
	}
	return nil
}
