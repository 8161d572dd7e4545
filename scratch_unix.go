//go:build !windows

package colidx

import (
	"os"

	"golang.org/x/sys/unix"
)

func flockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func flockUnlock(f *os.File) {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
