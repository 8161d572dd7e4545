package colidx

import (
	"math"

	"github.com/colidx/colidx/ints"
	"github.com/colidx/colidx/ion"
)

// This file is the NumericFrontier component: nextafter/inf over every
// supported Value kind, plus the Ops[T] constructors that wire those
// primitives into the capability bundle the rest of colidx consumes.

// BoolOps returns the Ops for T=bool. false orders before true;
// nextafter saturates at the existing bound, matching the integer
// saturation rule of spec.md §4.1.
func BoolOps() Ops[bool] {
	return Ops[bool]{
		Kind:  KindBool,
		Less:  func(a, b bool) bool { return !a && b },
		Equal: func(a, b bool) bool { return a == b },
		IsNaN: func(bool) bool { return false },
		NextAfter: func(x bool, dir int) bool {
			switch {
			case dir > 0:
				return true
			case dir < 0:
				return false
			default:
				return x
			}
		},
		Inf:    func(sign int) bool { return sign > 0 },
		Encode: func(dst *ion.Buffer, x bool) { dst.WriteBool(x) },
		Decode: func(body []byte) (bool, error) {
			v, _, err := ion.ReadBool(body)
			return v, err
		},
	}
}

func signedIntOps[T int8 | int16 | int32 | int64](kind TypeKind, min, max T) Ops[T] {
	return Ops[T]{
		Kind:  kind,
		Less:  func(a, b T) bool { return a < b },
		Equal: func(a, b T) bool { return a == b },
		IsNaN: func(T) bool { return false },
		NextAfter: func(x T, dir int) T {
			switch {
			case dir > 0:
				if x == max {
					return max
				}
				return x + 1
			case dir < 0:
				if x == min {
					return min
				}
				return x - 1
			default:
				return x
			}
		},
		Inf: func(sign int) T {
			if sign > 0 {
				return max
			}
			return min
		},
		Encode: func(dst *ion.Buffer, x T) { dst.WriteInt(int64(x)) },
		Decode: func(body []byte) (T, error) {
			v, _, err := ion.ReadInt(body)
			return T(v), err
		},
		ToFloat: func(x T) float64 { return float64(x) },
	}
}

func unsignedIntOps[T uint8 | uint16 | uint32 | uint64](kind TypeKind, max T) Ops[T] {
	return Ops[T]{
		Kind:  kind,
		Less:  func(a, b T) bool { return a < b },
		Equal: func(a, b T) bool { return a == b },
		IsNaN: func(T) bool { return false },
		NextAfter: func(x T, dir int) T {
			switch {
			case dir > 0:
				if x == max {
					return max
				}
				return x + 1
			case dir < 0:
				if x == 0 {
					return 0
				}
				return x - 1
			default:
				return x
			}
		},
		Inf: func(sign int) T {
			if sign > 0 {
				return max
			}
			return 0
		},
		Encode: func(dst *ion.Buffer, x T) { dst.WriteUint(uint64(x)) },
		Decode: func(body []byte) (T, error) {
			v, _, err := ion.ReadUint(body)
			return T(v), err
		},
		ToFloat: func(x T) float64 { return float64(x) },
	}
}

func Int8Ops() Ops[int8]   { return signedIntOps[int8](KindInt8, math.MinInt8, math.MaxInt8) }
func Int16Ops() Ops[int16] { return signedIntOps[int16](KindInt16, math.MinInt16, math.MaxInt16) }
func Int32Ops() Ops[int32] { return signedIntOps[int32](KindInt32, math.MinInt32, math.MaxInt32) }
func Int64Ops() Ops[int64] { return signedIntOps[int64](KindInt64, math.MinInt64, math.MaxInt64) }

func Uint8Ops() Ops[uint8]   { return unsignedIntOps[uint8](KindUint8, math.MaxUint8) }
func Uint16Ops() Ops[uint16] { return unsignedIntOps[uint16](KindUint16, math.MaxUint16) }
func Uint32Ops() Ops[uint32] { return unsignedIntOps[uint32](KindUint32, math.MaxUint32) }
func Uint64Ops() Ops[uint64] { return unsignedIntOps[uint64](KindUint64, math.MaxUint64) }

// clampInt is a thin wrapper kept around ints.Clamp for callers
// elsewhere in colidx that need a saturating clamp of an already
// in-range increment (e.g. cursor arithmetic in search.go); the
// nextafter functions above avoid it because x±1 can overflow before
// Clamp ever sees it.
func clampInt[T int | int32 | int64](x, lo, hi T) T {
	return ints.Clamp(x, lo, hi)
}

// Float64Ops returns the Ops for T=float64. nextafter is implemented
// by stepping the IEEE-754 bit pattern directly (no platform
// math.Nextafter call): the representation's ordering as an integer
// matches its numeric ordering once the sign bit is accounted for, so
// "increment/decrement the bits" is exactly "move to the next
// representable value", including correctly across the normal/
// subnormal boundary. NaN and ±Inf are fixed points; -0 and +0 are
// treated as equal and step to the same neighbours.
func Float64Ops() Ops[float64] {
	return Ops[float64]{
		Kind:  KindFloat64,
		Less:  func(a, b float64) bool { return a < b },
		Equal: func(a, b float64) bool { return a == b || (a == 0 && b == 0) },
		IsNaN: math.IsNaN,
		NextAfter: func(x float64, dir int) float64 {
			return nextafter64(x, dir)
		},
		Inf: func(sign int) float64 {
			if sign > 0 {
				return math.Inf(1)
			}
			return math.Inf(-1)
		},
		Encode: func(dst *ion.Buffer, x float64) { dst.WriteFloat64(x) },
		Decode: func(body []byte) (float64, error) {
			v, _, err := ion.ReadFloat64(body)
			return v, err
		},
		ToFloat: func(x float64) float64 { return x },
	}
}

func Float32Ops() Ops[float32] {
	return Ops[float32]{
		Kind:  KindFloat32,
		Less:  func(a, b float32) bool { return a < b },
		Equal: func(a, b float32) bool { return a == b || (a == 0 && b == 0) },
		IsNaN: func(x float32) bool { return math.IsNaN(float64(x)) },
		NextAfter: func(x float32, dir int) float32 {
			return nextafter32(x, dir)
		},
		Inf: func(sign int) float32 {
			if sign > 0 {
				return float32(math.Inf(1))
			}
			return float32(math.Inf(-1))
		},
		Encode: func(dst *ion.Buffer, x float32) { dst.WriteFloat32(x) },
		Decode: func(body []byte) (float32, error) {
			v, _, err := ion.ReadFloat32(body)
			return v, err
		},
		ToFloat: func(x float32) float64 { return float64(x) },
	}
}

func nextafter64(x float64, dir int) float64 {
	if dir == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	bits := math.Float64bits(x)
	if x == 0 {
		if dir > 0 {
			return math.Float64frombits(1)
		}
		return math.Float64frombits(1 | (1 << 63))
	}
	if (x > 0) == (dir > 0) {
		bits++
	} else {
		bits--
	}
	return math.Float64frombits(bits)
}

func nextafter32(x float32, dir int) float32 {
	if dir == 0 || math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
		return x
	}
	bits := math.Float32bits(x)
	if x == 0 {
		if dir > 0 {
			return math.Float32frombits(1)
		}
		return math.Float32frombits(1 | (1 << 31))
	}
	if (x > 0) == (dir > 0) {
		bits++
	} else {
		bits--
	}
	return math.Float32frombits(bits)
}

// BytesOps returns the Ops for a fixed-width byte-string key of the
// given itemsize. Values are Go strings of exactly itemsize bytes,
// right-padded with \x00; nextafter/inf always operate on the full
// padded representation, never a trimmed one, per spec.md §9's
// explicit prescription.
func BytesOps(itemsize int) Ops[string] {
	return Ops[string]{
		Kind:     KindBytes,
		ItemSize: itemsize,
		Zero:     string(make([]byte, itemsize)),
		Less:     func(a, b string) bool { return a < b },
		Equal:    func(a, b string) bool { return a == b },
		IsNaN:    func(string) bool { return false },
		NextAfter: func(x string, dir int) string {
			return bytesNextAfter(pad(x, itemsize), dir, itemsize)
		},
		Inf: func(sign int) string {
			fill := byte(0x00)
			if sign > 0 {
				fill = 0xff
			}
			b := make([]byte, itemsize)
			for i := range b {
				b[i] = fill
			}
			return string(b)
		},
		Encode: func(dst *ion.Buffer, x string) { dst.WriteString(pad(x, itemsize)) },
		Decode: func(body []byte) (string, error) {
			v, _, err := ion.ReadString(body)
			return v, err
		},
	}
}

// pad right-pads s with \x00 to exactly n bytes (truncating if it is
// already longer, which should not happen for validated input).
func pad(s string, n int) string {
	if len(s) == n {
		return s
	}
	if len(s) > n {
		return s[:n]
	}
	b := make([]byte, n)
	copy(b, s)
	return string(b)
}

// bytesNextAfter computes the lexicographic successor/predecessor of
// a fixed-width, right-padded byte string, saturating at all-\xff
// (direction > 0) or all-\x00 (direction < 0), treating the string as
// a big-endian base-256 number.
func bytesNextAfter(x string, dir, itemsize int) string {
	if dir == 0 {
		return x
	}
	b := []byte(x)
	if dir > 0 {
		for i := len(b) - 1; i >= 0; i-- {
			if b[i] != 0xff {
				b[i]++
				for j := i + 1; j < len(b); j++ {
					b[j] = 0x00
				}
				return string(b)
			}
		}
		// already all-\xff: saturate
		return x
	}
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0x00 {
			b[i]--
			for j := i + 1; j < len(b); j++ {
				b[j] = 0xff
			}
			return string(b)
		}
	}
	// already all-\x00: saturate
	return x
}
