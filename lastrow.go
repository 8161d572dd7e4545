package colidx

import "github.com/colidx/colidx/ion"

// LastRowBuffer is the in-progress, not-yet-full trailing slice of
// spec.md §3: sortedLR ("[begin, chunk-bounds…, end, values…]") and
// indicesLR (original row indices, with the final cell repurposed to
// hold nelementsLR, the true valid-entry count).
type LastRowBuffer[T any] struct {
	ss int // slicesize, fixed capacity of Values
	cs int // chunksize

	// Sorted is laid out [begin, chunkBounds..., end, values...],
	// mirroring spec.md's sortedLR exactly; Begin/End/ChunkBounds
	// below are views into it.
	Sorted []T
	// Values holds the true sorted values, nelementsLR of which are
	// valid; len(Values) == ss always.
	Values []T
	// Indices holds the original row index for each valid Values
	// entry; len(Indices) == ss, unused tail is zero.
	Indices []int64
	// N is nelementsLR, the number of valid entries.
	N int
}

// NewLastRowBuffer allocates an empty buffer sized for the given
// slicesize/chunksize.
func NewLastRowBuffer[T any](ss, cs int) *LastRowBuffer[T] {
	nbounds := ss/cs - 1
	return &LastRowBuffer[T]{
		ss:      ss,
		cs:      cs,
		Sorted:  make([]T, 2+nbounds+ss),
		Values:  make([]T, ss),
		Indices: make([]int64, ss),
	}
}

// Fill sorts values (already paired with their original row indices
// by the caller) and stores them as the new last-row content. len
// must be strictly less than ss; a full slice never takes this path.
func (l *LastRowBuffer[T]) Fill(values []T, origIdx []int64, ops Ops[T]) error {
	n := len(values)
	if n != len(origIdx) {
		fatal(AssertionViolation, "last-row values/indices length mismatch: %d vs %d", n, len(origIdx))
	}
	if n >= l.ss {
		return errf(AssertionViolation, "last-row append of %d values >= slicesize %d", n, l.ss)
	}

	perm := argsort(values, ops)
	for i, p := range perm {
		l.Values[i] = values[p]
		l.Indices[i] = origIdx[p]
	}
	for i := n; i < l.ss; i++ {
		var zero T
		l.Values[i] = zero
		l.Indices[i] = 0
	}
	l.N = n
	l.Indices[l.ss-1] = int64(n)

	nbounds := l.ss/l.cs - 1
	l.Sorted[0] = l.Values[0]
	for k := 0; k < nbounds && (k+1)*l.cs < n; k++ {
		l.Sorted[1+k] = l.Values[(k+1)*l.cs]
	}
	l.Sorted[1+nbounds] = l.Values[n-1]
	copy(l.Sorted[2+nbounds:], l.Values)
	return nil
}

// Bebounds returns the cached chunk separators plus begin/end values
// used by the Searcher to short-circuit a last-row lookup without
// scanning Values directly.
func (l *LastRowBuffer[T]) Bebounds() []T {
	nbounds := l.ss/l.cs - 1
	return l.Sorted[:2+nbounds]
}

func (l *LastRowBuffer[T]) Begin() T { return l.Sorted[0] }
func (l *LastRowBuffer[T]) End() T   { nbounds := l.ss/l.cs - 1; return l.Sorted[1+nbounds] }

// Encode persists the last-row buffer, modeled on ion/blockfmt's
// Blockdesc, a small fixed descriptor attached to the trailing unit.
func (l *LastRowBuffer[T]) Encode(dst *ion.Buffer, st *ion.Symtab, ops Ops[T]) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("n"))
	dst.WriteInt(int64(l.N))
	dst.BeginField(st.Intern("values"))
	encodeValueList(dst, l.Values, ops)
	dst.BeginField(st.Intern("indices"))
	dst.BeginList(-1)
	for _, idx := range l.Indices {
		dst.WriteInt(idx)
	}
	dst.EndList()
	dst.EndStruct()
}

// DecodeLastRowBuffer restores a LastRowBuffer from an ion-encoded
// struct body written by Encode.
func DecodeLastRowBuffer[T any](st *ion.Symtab, body []byte, ss, cs int, ops Ops[T]) (*LastRowBuffer[T], error) {
	l := NewLastRowBuffer[T](ss, cs)
	var values []T
	var indices []int64
	_, err := ion.UnpackStruct(st, body, func(name string, fbody []byte) error {
		switch name {
		case "n":
			n, _, err := ion.ReadInt(fbody)
			if err != nil {
				return err
			}
			l.N = int(n)
		case "values":
			v, err := decodeValueList(fbody, ops)
			if err != nil {
				return err
			}
			values = v
		case "indices":
			_, err := ion.UnpackList(fbody, func(item []byte) error {
				v, _, err := ion.ReadInt(item)
				if err != nil {
					return err
				}
				indices = append(indices, v)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		copy(l.Values, values)
	}
	if len(indices) > 0 {
		copy(l.Indices, indices)
	}
	if l.N > 0 {
		if err := l.Fill(append([]T(nil), l.Values[:l.N]...), append([]int64(nil), l.Indices[:l.N]...), ops); err != nil {
			return nil, err
		}
	}
	return l, nil
}
