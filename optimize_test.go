package colidx

import "testing"

// buildOptimizer creates an Optimizer over 4 slices of 4 values each
// (chunksize 2, blocksize = 2 slices, superblocksize = 2 blocks) that
// are deliberately interleaved out of order, so a start-mode
// swap_chunks pass has real work to do.
func buildOptimizer(t *testing.T) *Optimizer[int64] {
	t.Helper()
	ops := Int64Ops()
	bound := &BoundsArrays[int64]{}
	data := NewMemChunkedArray[int64](4)
	ids := NewMemChunkedArray[int64](4)

	slices := [][]int64{
		{20, 21, 22, 23},
		{0, 1, 2, 3},
		{30, 31, 32, 33},
		{10, 11, 12, 13},
	}
	for i, s := range slices {
		if err := bound.AppendSlice(s, 2); err != nil {
			t.Fatalf("AppendSlice: %v", err)
		}
		if _, err := data.AppendRow(s); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
		ids4 := []int64{int64(i * 4), int64(i*4 + 1), int64(i*4 + 2), int64(i*4 + 3)}
		if _, err := ids.AppendRow(ids4); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}

	return &Optimizer[int64]{
		Ops:        ops,
		CS:         2,
		SS:         4,
		BS:         8,
		SBS:        16,
		Bound:      bound,
		Data:       data,
		IDs:        ids,
		Cache:      NewLimBoundsCache(16, 1<<20),
		ScratchDir: t.TempDir(),
	}
}

func TestOptimizeNeverIncreasesOverlap(t *testing.T) {
	o := buildOptimizer(t)
	_, _, before := OverlapMetric(o.Bound.Ranges, o.Ops)

	sorted, err := o.Optimize(9)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	_, _, after := OverlapMetric(o.Bound.Ranges, o.Ops)
	if after > before {
		t.Fatalf("optimize increased overlap: before=%v after=%v", before, after)
	}
	if sorted {
		_, _, tover := OverlapMetric(o.Bound.Ranges, o.Ops)
		if tover != 0 {
			t.Fatalf("globallySorted=true but toverlap=%v", tover)
		}
	}

	row := make([]int64, 4)
	for i := 0; i < o.Data.Rows(); i++ {
		if _, err := o.Data.ReadRow(i, row); err != nil {
			t.Fatalf("ReadRow: %v", err)
		}
		for j := 1; j < len(row); j++ {
			if row[j] < row[j-1] {
				t.Fatalf("slice %d not sorted after optimize: %v", i, row)
			}
		}
	}
}

func TestOptimizeSkipsSingleSlice(t *testing.T) {
	ops := Int64Ops()
	bound := &BoundsArrays[int64]{}
	if err := bound.AppendSlice([]int64{1, 2, 3, 4}, 2); err != nil {
		t.Fatalf("AppendSlice: %v", err)
	}
	o := &Optimizer[int64]{
		Ops:        ops,
		CS:         2,
		SS:         4,
		BS:         8,
		SBS:        16,
		Bound:      bound,
		Data:       NewMemChunkedArray[int64](4),
		IDs:        NewMemChunkedArray[int64](4),
		Cache:      NewLimBoundsCache(16, 1<<20),
		ScratchDir: t.TempDir(),
	}
	sorted, err := o.Optimize(9)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !sorted {
		t.Fatal("expected a single slice to be trivially globally sorted")
	}
}

func TestLevelPhases(t *testing.T) {
	if len(levelPhases(0)) != 0 {
		t.Fatal("expected level 0 to run no phases")
	}
	if len(levelPhases(4)) != 1 {
		t.Fatalf("expected level 4 to run 1 phase, got %d", len(levelPhases(4)))
	}
	if len(levelPhases(7)) != 2 {
		t.Fatalf("expected level 7 to run 2 phases, got %d", len(levelPhases(7)))
	}
	if len(levelPhases(9)) != 5 {
		t.Fatalf("expected level 9 to run 5 phases, got %d", len(levelPhases(9)))
	}
}
