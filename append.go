package colidx

import "sort"

// Appender is spec.md §4.4: sort an incoming slice stably, compute
// its argsort permutation, and extend the persistent arrays (or the
// LastRowBuffer, for a short append) with the result.
type Appender[T any] struct {
	Ops   Ops[T]
	CS    int
	SS    int
	Bound *BoundsArrays[T]
	Last  *LastRowBuffer[T]
	Data  ChunkedArray[T]
	IDs   ChunkedArray[int64]
}

// argsort returns the permutation that stably sorts values by
// ops.Less, i.e. the indices s such that values[s[0]] <= values[s[1]]
// <= ... with ties kept in original order.
func argsort[T any](values []T, ops Ops[T]) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return ops.Less(values[idx[i]], values[idx[j]])
	})
	return idx
}

// Append adds one full slice. len(values) must equal SS. Any NaN
// value is rejected (§4.3: "Appender rejects NaN"). A successful
// append is transactional per spec.md §9: either every array gets the
// new row, or none of them do.
func (a *Appender[T]) Append(values []T, baseRow int64) error {
	if len(values) != a.SS {
		return errf(AssertionViolation, "append of %d values != slicesize %d", len(values), a.SS)
	}
	if a.Ops.IsNaN != nil {
		for _, v := range values {
			if a.Ops.IsNaN(v) {
				return errf(TypeUnsupported, "NaN value rejected at append")
			}
		}
	}

	perm := argsort(values, a.Ops)
	sorted := make([]T, a.SS)
	origIdx := make([]int64, a.SS)
	for i, p := range perm {
		sorted[i] = values[p]
		origIdx[i] = baseRow + int64(p)
	}

	// Stage the bounds row before touching persistent storage so a
	// rejected slice (bad chunksize alignment) never partially
	// mutates anything.
	staged := *a.Bound
	if err := staged.AppendSlice(sorted, a.CS); err != nil {
		return err
	}

	row, err := a.Data.AppendRow(sorted)
	if err != nil {
		return wrapf(IOFailure, err, "append sorted row")
	}
	if _, err := a.IDs.AppendRow(origIdx); err != nil {
		// roll the sorted row back so both arrays stay in step
		a.Data.Truncate(row)
		return wrapf(IOFailure, err, "append indices row")
	}
	*a.Bound = staged

	// A full append always clears any outstanding last-row buffer.
	a.Last.N = 0
	a.Last.Indices[a.Last.ss-1] = 0

	return nil
}

// AppendLastRow fills the trailing partial slice. len(values) must be
// strictly less than SS; totalRows is informational only (it mirrors
// the producer API's total_rows argument from spec.md §6 but colidx's
// row accounting is derived from Data.Rows()/IDs.Rows(), not a
// separately tracked counter).
func (a *Appender[T]) AppendLastRow(values []T, baseRow int64, totalRows int64) error {
	if len(values) >= a.SS {
		return errf(AssertionViolation, "last-row append of %d values >= slicesize %d", len(values), a.SS)
	}
	if a.Ops.IsNaN != nil {
		for _, v := range values {
			if a.Ops.IsNaN(v) {
				return errf(TypeUnsupported, "NaN value rejected at append")
			}
		}
	}
	origIdx := make([]int64, len(values))
	for i := range values {
		origIdx[i] = baseRow + int64(i)
	}
	return a.Last.Fill(values, origIdx, a.Ops)
}
