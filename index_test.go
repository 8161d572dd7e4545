package colidx

import (
	"os"
	"path/filepath"
	"testing"
)

func testParams() Params {
	return Params{
		ChunkSize:      2,
		SliceSize:      4,
		BlockSize:      8,
		SuperBlockSize: 16,
		OptLevel:       9,
		ReordOpts:      "start,stop",
		Filters:        "",
		CacheSlots:     16,
		CacheBytes:     1 << 20,
	}
}

func newTestIndex(t *testing.T) *Index[int64] {
	t.Helper()
	params := testParams()
	data := NewMemChunkedArray[int64](params.SliceSize)
	ids := NewMemChunkedArray[int64](params.SliceSize)
	idx, err := Create(Int64Ops(), params, data, ids, t.TempDir(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return idx
}

func TestCreateValidatesParams(t *testing.T) {
	bad := testParams()
	bad.SliceSize = 3 // not a multiple of chunksize
	data := NewMemChunkedArray[int64](4)
	ids := NewMemChunkedArray[int64](4)
	if _, err := Create(Int64Ops(), bad, data, ids, t.TempDir(), ""); err == nil {
		t.Fatal("expected invalid params to be rejected")
	}
}

func TestIndexAppendAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Append([]int64{4, 3, 1, 2}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := idx.Append([]int64{8, 5, 7, 6}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := idx.AppendLastRow([]int64{10, 9}, 10); err != nil {
		t.Fatalf("AppendLastRow: %v", err)
	}

	total, starts, lengths, err := idx.Search(2, 9)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 8 { // values present: 1..10; range [2,9] matches 8 of them
		t.Fatalf("expected 8 matches in [2,9], got %d", total)
	}

	coords, err := idx.Coords(starts, lengths, 0, 100)
	if err != nil {
		t.Fatalf("Coords: %v", err)
	}
	if len(coords) != 8 {
		t.Fatalf("expected 8 coords, got %d", len(coords))
	}
}

func TestIndexAppendRejectsWrongWidth(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Append([]int64{1, 2, 3}); err == nil {
		t.Fatal("expected wrong-width append to fail")
	}
	// AssertionViolation is one of the fatal kinds markDirtyOnFault
	// reacts to, so a broken append leaves the index marked dirty for
	// the container to rebuild.
	if !idx.Dirty() {
		t.Fatal("expected AssertionViolation to mark the index dirty")
	}
}

func TestIndexOptimizeDefaultsLevelFromParams(t *testing.T) {
	idx := newTestIndex(t)
	for _, v := range [][]int64{{8, 7, 6, 5}, {4, 3, 2, 1}} {
		if err := idx.Append(v); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := idx.Optimize(-1); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !idx.globallySorted {
		t.Fatal("expected the two disjoint reversed slices to end up globally sorted")
	}
}

func TestIndexSaveOpenRoundTrip(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Append([]int64{4, 3, 1, 2}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := idx.AppendLastRow([]int64{6, 5}, 6); err != nil {
		t.Fatalf("AppendLastRow: %v", err)
	}

	metaPath := filepath.Join(t.TempDir(), "meta.ion")
	if err := idx.Save(metaPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(Int64Ops(), idx.Data, idx.IDs, metaPath, t.TempDir(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.Params != idx.Params {
		t.Fatalf("params mismatch after round trip: got %+v want %+v", reopened.Params, idx.Params)
	}
	if reopened.Bound.NRows() != idx.Bound.NRows() {
		t.Fatalf("bound row count mismatch: got %d want %d", reopened.Bound.NRows(), idx.Bound.NRows())
	}
	if reopened.Last.N != idx.Last.N {
		t.Fatalf("last-row count mismatch: got %d want %d", reopened.Last.N, idx.Last.N)
	}

	total, _, _, err := reopened.Search(2, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 4 { // 2,3,4,5
		t.Fatalf("expected 4 matches after reopen, got %d", total)
	}
}

func TestIndexLookupRange(t *testing.T) {
	idx := newTestIndex(t)
	lo, hi, empty, err := idx.LookupRange([]CompareOp{OpGE, OpLE}, []int64{1, 5})
	if err != nil {
		t.Fatalf("LookupRange: %v", err)
	}
	if empty || lo != 1 || hi != 5 {
		t.Fatalf("unexpected LookupRange result: lo=%d hi=%d empty=%v", lo, hi, empty)
	}
}

func TestIndexRemoveClearsCacheAndSnapshot(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Append([]int64{1, 2, 3, 4}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, _, _, err := idx.Search(1, 4); err != nil {
		t.Fatalf("Search: %v", err)
	}

	idx.CachePath = filepath.Join(t.TempDir(), "cache.snapshot")
	if err := idx.Cache.SaveSnapshot(idx.CachePath); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	if err := idx.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := idx.Cache.Get(CacheKey(idx.Ops, 1, 4)); ok {
		t.Fatal("expected Remove to invalidate the in-memory cache")
	}
	if _, err := os.Stat(idx.CachePath); !os.IsNotExist(err) {
		t.Fatal("expected Remove to delete the cache snapshot file")
	}

	// Removing again (snapshot file already gone) must not error.
	if err := idx.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}
