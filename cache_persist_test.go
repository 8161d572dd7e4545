package colidx

import (
	"path/filepath"
	"testing"
)

func TestLimBoundsCacheSnapshotRoundTrip(t *testing.T) {
	c := NewLimBoundsCache(10, 1<<20)
	ops := Int64Ops()
	k1 := CacheKey(ops, 1, 10)
	k2 := CacheKey(ops, 20, 30)
	c.Set(k1, []sliceSpan{{Slice: 0, Start: 1, Length: 3}})
	c.Set(k2, []sliceSpan{{Slice: 2, Start: 0, Length: 5}, {Slice: 3, Start: 1, Length: 2}})

	path := filepath.Join(t.TempDir(), "cache.snapshot")
	if err := c.SaveSnapshot(path); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	restored := NewLimBoundsCache(10, 1<<20)
	if err := restored.RestoreSnapshot(path); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}

	got1, ok := restored.Get(k1)
	if !ok || len(got1) != 1 || got1[0].Length != 3 {
		t.Fatalf("unexpected restored spans for k1: %v (ok=%v)", got1, ok)
	}
	got2, ok := restored.Get(k2)
	if !ok || len(got2) != 2 {
		t.Fatalf("unexpected restored spans for k2: %v (ok=%v)", got2, ok)
	}
}

func TestLimBoundsCacheRestoreMissingFileIsNotAnError(t *testing.T) {
	c := NewLimBoundsCache(10, 1<<20)
	path := filepath.Join(t.TempDir(), "does-not-exist.snapshot")
	if err := c.RestoreSnapshot(path); err != nil {
		t.Fatalf("expected a missing snapshot file to be a no-op, got %v", err)
	}
}
