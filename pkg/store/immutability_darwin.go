//go:build darwin

package store

import "golang.org/x/sys/unix"

func imposeImmutability(dir string) error {
	if err := unix.Chflags(dir, unix.UF_IMMUTABLE); err != nil {
		return nil
	}
	return nil
}

func clearImmutability(dir string) error {
	if err := unix.Chflags(dir, 0); err != nil {
		return nil
	}
	return nil
}
