package colidx

import (
	"os"

	"github.com/google/uuid"
)

// scratch is the Optimizer's temporary sibling file of spec.md §4.5: a
// scoped resource whose acquisition and release must be guaranteed on
// every exit path, per spec.md §9. It holds uncompressed mirrors of
// sorted/indices/bounds for the slices currently being rewritten;
// compression is deliberately skipped here to avoid rewrite cost, same
// as spec.md prescribes.
type scratch struct {
	f    *os.File
	path string
}

// openScratch creates a fresh, exclusively-locked scratch file next to
// dir with a uuid-derived name, mirroring how the teacher stack names
// one-off temporary objects.
func openScratch(dir string) (*scratch, error) {
	name := "colidx-scratch-" + uuid.NewString() + ".tmp"
	path := dir + string(os.PathSeparator) + name
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, wrapf(ScratchFailure, err, "create scratch file")
	}
	if err := flockExclusive(f); err != nil {
		f.Close()
		os.Remove(path)
		return nil, wrapf(ScratchFailure, err, "lock scratch file")
	}
	return &scratch{f: f, path: path}, nil
}

// close unlocks, closes, and unlinks the scratch file. Safe to call
// multiple times; every Optimizer exit path (success or error) must
// call it exactly once via defer.
func (s *scratch) close() error {
	if s == nil || s.f == nil {
		return nil
	}
	flockUnlock(s.f)
	err := s.f.Close()
	if rmErr := os.Remove(s.path); err == nil {
		err = rmErr
	}
	s.f = nil
	if err != nil {
		return wrapf(ScratchFailure, err, "release scratch file")
	}
	return nil
}
