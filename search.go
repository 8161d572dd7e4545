package colidx

import "sort"

// Searcher is spec.md §4.3: given a closed range [lo,hi], produce
// per-slice starts[]/lengths[] and the total matched count, consulting
// the cache and the last-row buffer along the way.
type Searcher[T any] struct {
	Ops   Ops[T]
	CS    int
	SS    int
	Bound *BoundsArrays[T]
	Last  *LastRowBuffer[T]
	Data  ChunkedArray[T]
	Cache *LimBoundsCache

	// GloballySorted is the "is_csi" fast path of SPEC_FULL.md's
	// supplemented-features section: set by the Optimizer once a full
	// pass confirms toverlap == 0, it lets the last-row short-circuit
	// skip its bounds check and go straight to binary search, since a
	// globally sorted index's last row is guaranteed contiguous with
	// the full slices.
	GloballySorted bool
}

// rowCount is nrows per spec.md §3: full slices, plus one more if the
// last-row buffer holds anything.
func (s *Searcher[T]) rowCount() int {
	n := s.Bound.NRows()
	if s.Last.N > 0 {
		n++
	}
	return n
}

// Search runs the contract of spec.md §4.3 and returns the total
// matched count; starts/lengths are sized to rowCount() on return.
func (s *Searcher[T]) Search(lo, hi T) (total int, starts []int, lengths []int, err error) {
	n := s.rowCount()
	starts = make([]int, n)
	lengths = make([]int, n)

	if s.Ops.Less(hi, lo) {
		return 0, starts, lengths, nil
	}

	var key uint64
	if s.Cache != nil {
		key = CacheKey(s.Ops, lo, hi)
		if spans, ok := s.Cache.Get(key); ok {
			for _, sp := range spans {
				if sp.Slice < n {
					starts[sp.Slice] = sp.Start
					lengths[sp.Slice] = sp.Length
					total += sp.Length
				}
			}
			return total, starts, lengths, nil
		}
	}

	nfull := s.Bound.NRows()
	row := make([]T, s.SS)
	for i := 0; i < nfull; i++ {
		rng := s.Bound.Ranges[i]
		if s.Ops.Less(rng[1], lo) || s.Ops.Less(hi, rng[0]) {
			continue
		}
		if _, err := s.Data.ReadRow(i, row); err != nil {
			return 0, nil, nil, wrapf(IOFailure, err, "read slice %d", i)
		}
		bounds := s.Bound.Bounds[i]
		loPos := lowerBoundChunked(row, bounds, s.CS, lo, s.Ops)
		hiPos := upperBoundChunked(row, bounds, s.CS, hi, s.Ops)
		starts[i] = loPos
		lengths[i] = hiPos - loPos
		total += lengths[i]
	}

	if s.Last.N > 0 {
		li := n - 1
		skip := false
		if !s.GloballySorted {
			if s.Ops.Less(hi, s.Last.Begin()) || s.Ops.Less(s.Last.End(), lo) {
				skip = true
			}
		}
		if !skip {
			vals := s.Last.Values[:s.Last.N]
			loPos := sort.Search(len(vals), func(i int) bool { return !s.Ops.Less(vals[i], lo) })
			hiPos := sort.Search(len(vals), func(i int) bool { return s.Ops.Less(hi, vals[i]) })
			starts[li] = loPos
			lengths[li] = hiPos - loPos
			total += lengths[li]
		}
	}

	if s.Cache != nil {
		spans := make([]sliceSpan, 0, n)
		for i := 0; i < n; i++ {
			if lengths[i] > 0 {
				spans = append(spans, sliceSpan{Slice: i, Start: starts[i], Length: lengths[i]})
			}
		}
		if s.Cache.CouldEnableCache(len(spans)) {
			s.Cache.Set(key, spans)
		}
	}

	return total, starts, lengths, nil
}

// lowerBoundChunked returns the smallest index i in row such that
// row[i] >= target, using bounds (the inter-chunk separators) to pick
// the candidate chunk before a plain binary search inside it: the
// two-level search spec.md §4.3 describes.
func lowerBoundChunked[T any](row, bounds []T, cs int, target T, ops Ops[T]) int {
	chunk := sort.Search(len(bounds), func(k int) bool { return !ops.Less(bounds[k], target) })
	lo := chunk * cs
	hi := clampInt(lo+cs, 0, len(row))
	pos := sort.Search(hi-lo, func(i int) bool { return !ops.Less(row[lo+i], target) })
	return lo + pos
}

// upperBoundChunked returns the smallest index i in row such that
// row[i] > target, via the same two-level search as lowerBoundChunked.
func upperBoundChunked[T any](row, bounds []T, cs int, target T, ops Ops[T]) int {
	chunk := sort.Search(len(bounds), func(k int) bool { return ops.Less(target, bounds[k]) })
	lo := chunk * cs
	hi := clampInt(lo+cs, 0, len(row))
	pos := sort.Search(hi-lo, func(i int) bool { return ops.Less(target, row[lo+i]) })
	return lo + pos
}
