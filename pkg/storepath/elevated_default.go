//go:build !windows

package storepath

import "os"

func isElevated() bool {
	return os.Geteuid() == 0
}
