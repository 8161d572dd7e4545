package colidx

import "testing"

// buildSearcher constructs a Searcher over 2 full slices of 4 values
// each (chunksize 2) plus a partial last-row buffer of 2 values.
func buildSearcher(t *testing.T) *Searcher[int64] {
	t.Helper()
	ops := Int64Ops()
	bound := &BoundsArrays[int64]{}
	data := NewMemChunkedArray[int64](4)

	slice0 := []int64{1, 2, 5, 6}
	slice1 := []int64{10, 11, 15, 16}
	if err := bound.AppendSlice(slice0, 2); err != nil {
		t.Fatalf("AppendSlice: %v", err)
	}
	if err := bound.AppendSlice(slice1, 2); err != nil {
		t.Fatalf("AppendSlice: %v", err)
	}
	if _, err := data.AppendRow(slice0); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if _, err := data.AppendRow(slice1); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}

	last := NewLastRowBuffer[int64](4, 2)
	if err := last.Fill([]int64{20, 21}, []int64{100, 101}, ops); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	return &Searcher[int64]{
		Ops:   ops,
		CS:    2,
		SS:    4,
		Bound: bound,
		Last:  last,
		Data:  data,
		Cache: NewLimBoundsCache(16, 1<<20),
	}
}

func TestSearchWithinOneSlice(t *testing.T) {
	s := buildSearcher(t)
	total, starts, lengths, err := s.Search(2, 6)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 3 { // 2, 5, 6
		t.Fatalf("expected 3 matches, got %d", total)
	}
	if starts[0] != 1 || lengths[0] != 3 {
		t.Fatalf("unexpected slice 0 window: start=%d length=%d", starts[0], lengths[0])
	}
	if lengths[1] != 0 {
		t.Fatalf("expected no matches in slice 1, got %d", lengths[1])
	}
}

func TestSearchSpansSlicesAndLastRow(t *testing.T) {
	s := buildSearcher(t)
	total, _, lengths, err := s.Search(6, 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// slice0: {6} (1), slice1: {10,11,15,16} (4), last row: {20} (1)
	if total != 6 {
		t.Fatalf("expected 6 matches, got %d", total)
	}
	if lengths[2] != 1 {
		t.Fatalf("expected 1 match in the last-row buffer, got %d", lengths[2])
	}
}

func TestSearchEmptyRangeWhenLoGreaterThanHi(t *testing.T) {
	s := buildSearcher(t)
	total, _, _, err := s.Search(10, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 matches for lo>hi, got %d", total)
	}
}

func TestSearchUsesCacheOnSecondCall(t *testing.T) {
	s := buildSearcher(t)
	if _, _, _, err := s.Search(2, 6); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if s.Cache.Misses != 1 {
		t.Fatalf("expected 1 miss on first call, got %d", s.Cache.Misses)
	}
	total, _, _, err := s.Search(2, 6)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected the cached result to still report 3 matches, got %d", total)
	}
	if s.Cache.Hits != 1 {
		t.Fatalf("expected 1 hit on second call, got %d", s.Cache.Hits)
	}
}

func TestLowerUpperBoundChunked(t *testing.T) {
	ops := Int64Ops()
	row := []int64{1, 2, 5, 6, 10, 11, 15, 16}
	bounds := []int64{5, 10, 15} // separators between the 4 chunks of width 2
	if got := lowerBoundChunked(row, bounds, 2, 6, ops); got != 3 {
		t.Fatalf("expected lowerBound(6)=3, got %d", got)
	}
	if got := upperBoundChunked(row, bounds, 2, 6, ops); got != 4 {
		t.Fatalf("expected upperBound(6)=4, got %d", got)
	}
	if got := lowerBoundChunked(row, bounds, 2, 100, ops); got != 8 {
		t.Fatalf("expected lowerBound(100)=len(row), got %d", got)
	}
}
