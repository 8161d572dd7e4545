package colidx

import (
	"github.com/colidx/colidx/ion"
	"golang.org/x/exp/constraints"
)

// Value is the closed set of Go types colidx can index. It mirrors
// spec.md's value type T: bool, the eight fixed-width integer types,
// float32/float64, and fixed-width byte strings. Integer and float
// width is expressed via x/exp/constraints the same way the teacher's
// ints package does (ints/clampers.go, ints/alignment.go), rather than
// hand-listing int8|int16|...; only bool and string need spelling out
// since constraints has no equivalent for them.
type Value interface {
	~bool | constraints.Integer | constraints.Float | ~string
}

// TypeKind tags which concrete Value instantiation an Index was built
// over. Stored as an index attribute so Open can verify the caller
// instantiated the right Index[T].
type TypeKind uint8

const (
	KindBool TypeKind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindBytes
)

func (k TypeKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Ops is the capability set spec.md §9 calls IndexKey: Ord, NextAfter,
// Inf, and Serialize, expressed as a bundle of functions rather than
// methods on T, since the supported T's (bool, the integer types,
// float32/float64, string) have no methods of their own to attach.
// Every colidx component that needs to compare, step, or persist a T
// value takes an Ops[T] alongside it; the caller picks the right Ops
// once, at the outer boundary (Create/Open), matching spec.md §9's
// "tagged-union wrapper dispatches once" design note.
type Ops[T Value] struct {
	Kind TypeKind
	Zero T

	// ItemSize is the fixed byte width for byte-string keys, 0 for
	// every other kind.
	ItemSize int

	Less  func(a, b T) bool
	Equal func(a, b T) bool
	IsNaN func(x T) bool

	// NextAfter returns the representable neighbour of x in the
	// given direction (-1, 0, +1); direction 0 returns x unchanged.
	NextAfter func(x T, direction int) T

	// Inf returns the representational +∞ (sign > 0) or -∞
	// (sign <= 0) sentinel for this kind.
	Inf func(sign int) T

	Encode func(dst *ion.Buffer, x T)
	Decode func(body []byte) (T, error)

	// ToFloat widens x to float64 for the overlap metric's (§4.6)
	// arithmetic. nil for kinds with no meaningful numeric distance
	// (bool, byte strings), in which case overlap.go reports
	// toverlap = -1 exactly as spec.md §4.6 prescribes for byte
	// strings.
	ToFloat func(x T) float64
}
