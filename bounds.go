package colidx

import (
	"github.com/colidx/colidx/ion"
)

// BoundsArrays is the pure-derived-data component of spec.md §3:
// ranges, bounds, abounds, zbounds, mbounds, and mranges. Every field
// is recomputed from a slice's sorted content, never hand-edited; the
// Optimizer rebuilds the whole structure by replaying AppendSlice in
// the new slice order rather than patching subranges in place, which
// keeps the invariants in §3 trivially true by construction instead
// of by careful incremental bookkeeping.
type BoundsArrays[T any] struct {
	// Ranges[i] = (sorted[i,0], sorted[i,ss-1]).
	Ranges [][2]T
	// MRanges[i] = mbounds[i*ncs + ncs/2].
	MRanges []T
	// Bounds[i][k] = sorted[i,(k+1)*cs], k in [0, ss/cs-1).
	Bounds [][]T
	// ABounds/ZBounds/MBounds are indexed [i*ncs+j] for slice i,
	// chunk j: first, last, and middle value of chunk j within slice i.
	ABounds []T
	ZBounds []T
	MBounds []T

	ncs int // chunks per slice (ss/cs), fixed after the first append
}

// NRows reports the number of full slices recorded.
func (b *BoundsArrays[T]) NRows() int { return len(b.Ranges) }

// Reset discards all recorded slices, for use by the Optimizer before
// replaying slices in their new order.
func (b *BoundsArrays[T]) Reset() {
	b.Ranges = b.Ranges[:0]
	b.MRanges = b.MRanges[:0]
	b.Bounds = b.Bounds[:0]
	b.ABounds = b.ABounds[:0]
	b.ZBounds = b.ZBounds[:0]
	b.MBounds = b.MBounds[:0]
}

// AppendSlice derives and appends one row of bounds data for a fully
// sorted slice of length ss = cs*ncs. sorted must already be sorted
// non-decreasing per Ops.Less; the caller (Appender, Optimizer) is
// responsible for that.
func (b *BoundsArrays[T]) AppendSlice(sorted []T, cs int) error {
	ss := len(sorted)
	if cs <= 0 || ss%cs != 0 {
		return errf(AssertionViolation, "slice length %d not a multiple of chunksize %d", ss, cs)
	}
	ncs := ss / cs
	if b.ncs != 0 && b.ncs != ncs {
		return errf(AssertionViolation, "chunks-per-slice changed from %d to %d", b.ncs, ncs)
	}
	b.ncs = ncs

	b.Ranges = append(b.Ranges, [2]T{sorted[0], sorted[ss-1]})

	bounds := make([]T, ncs-1)
	for k := 0; k < ncs-1; k++ {
		bounds[k] = sorted[(k+1)*cs]
	}
	b.Bounds = append(b.Bounds, bounds)

	base := len(b.ABounds)
	for j := 0; j < ncs; j++ {
		a := sorted[j*cs]
		z := sorted[(j+1)*cs-1]
		m := sorted[j*cs+cs/2]
		b.ABounds = append(b.ABounds, a)
		b.ZBounds = append(b.ZBounds, z)
		b.MBounds = append(b.MBounds, m)
	}
	b.MRanges = append(b.MRanges, b.MBounds[base+ncs/2])
	return nil
}

// Encode persists the bounds arrays as an ion struct, following the
// struct/list field encoding convention ion/blockfmt's TimeIndex and
// SparseIndex use for their own derived bounds-like state.
func (b *BoundsArrays[T]) Encode(dst *ion.Buffer, st *ion.Symtab, ops Ops[T]) {
	dst.BeginStruct(-1)

	dst.BeginField(st.Intern("ncs"))
	dst.WriteInt(int64(b.ncs))

	dst.BeginField(st.Intern("ranges"))
	dst.BeginList(-1)
	for _, r := range b.Ranges {
		ops.Encode(dst, r[0])
		ops.Encode(dst, r[1])
	}
	dst.EndList()

	dst.BeginField(st.Intern("mranges"))
	encodeValueList(dst, b.MRanges, ops)

	dst.BeginField(st.Intern("bounds"))
	dst.BeginList(-1)
	for _, row := range b.Bounds {
		dst.BeginList(-1)
		for _, v := range row {
			ops.Encode(dst, v)
		}
		dst.EndList()
	}
	dst.EndList()

	dst.BeginField(st.Intern("abounds"))
	encodeValueList(dst, b.ABounds, ops)
	dst.BeginField(st.Intern("zbounds"))
	encodeValueList(dst, b.ZBounds, ops)
	dst.BeginField(st.Intern("mbounds"))
	encodeValueList(dst, b.MBounds, ops)

	dst.EndStruct()
}

func encodeValueList[T any](dst *ion.Buffer, vals []T, ops Ops[T]) {
	dst.BeginList(-1)
	for _, v := range vals {
		ops.Encode(dst, v)
	}
	dst.EndList()
}

// DecodeBoundsArrays restores a BoundsArrays previously written by Encode from an
// ion-encoded struct body.
func DecodeBoundsArrays[T any](st *ion.Symtab, body []byte, ops Ops[T]) (*BoundsArrays[T], error) {
	b := &BoundsArrays[T]{}
	_, err := ion.UnpackStruct(st, body, func(name string, fbody []byte) error {
		switch name {
		case "ncs":
			n, _, err := ion.ReadInt(fbody)
			if err != nil {
				return err
			}
			b.ncs = int(n)
		case "ranges":
			flat, err := decodeValueList(fbody, ops)
			if err != nil {
				return err
			}
			for i := 0; i+1 < len(flat); i += 2 {
				b.Ranges = append(b.Ranges, [2]T{flat[i], flat[i+1]})
			}
		case "mranges":
			flat, err := decodeValueList(fbody, ops)
			if err != nil {
				return err
			}
			b.MRanges = flat
		case "bounds":
			_, err := ion.UnpackList(fbody, func(rowbody []byte) error {
				row, err := decodeValueList(rowbody, ops)
				if err != nil {
					return err
				}
				b.Bounds = append(b.Bounds, row)
				return nil
			})
			if err != nil {
				return err
			}
		case "abounds":
			flat, err := decodeValueList(fbody, ops)
			if err != nil {
				return err
			}
			b.ABounds = flat
		case "zbounds":
			flat, err := decodeValueList(fbody, ops)
			if err != nil {
				return err
			}
			b.ZBounds = flat
		case "mbounds":
			flat, err := decodeValueList(fbody, ops)
			if err != nil {
				return err
			}
			b.MBounds = flat
		}
		return nil
	})
	return b, err
}

func decodeValueList[T any](body []byte, ops Ops[T]) ([]T, error) {
	var out []T
	_, err := ion.UnpackList(body, func(item []byte) error {
		v, err := ops.Decode(item)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}
