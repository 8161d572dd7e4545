//go:build windows

package colidx

import "os"

// flockExclusive/flockUnlock are no-ops on platforms without POSIX
// advisory locking; the scratch file's exclusive-name + O_EXCL
// creation is relied on instead.
func flockExclusive(f *os.File) error { return nil }

func flockUnlock(f *os.File) {}
