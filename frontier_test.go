package colidx

import "testing"

func TestInt64NextAfterSaturates(t *testing.T) {
	ops := Int64Ops()
	if got := ops.NextAfter(ops.Inf(1), 1); got != ops.Inf(1) {
		t.Fatalf("expected max int64 to saturate on +direction, got %d", got)
	}
	if got := ops.NextAfter(ops.Inf(-1), -1); got != ops.Inf(-1) {
		t.Fatalf("expected min int64 to saturate on -direction, got %d", got)
	}
	if got := ops.NextAfter(5, 1); got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
	if got := ops.NextAfter(5, 0); got != 5 {
		t.Fatalf("expected direction 0 to be a no-op, got %d", got)
	}
}

func TestUint64NextAfterSaturates(t *testing.T) {
	ops := Uint64Ops()
	if got := ops.NextAfter(0, -1); got != 0 {
		t.Fatalf("expected 0 to saturate on -direction, got %d", got)
	}
	if got := ops.NextAfter(ops.Inf(1), 1); got != ops.Inf(1) {
		t.Fatalf("expected max uint64 to saturate on +direction, got %d", got)
	}
}

func TestFloat64NextAfter(t *testing.T) {
	ops := Float64Ops()
	up := ops.NextAfter(1.0, 1)
	if !(up > 1.0) {
		t.Fatalf("expected nextafter(1.0, +1) > 1.0, got %v", up)
	}
	down := ops.NextAfter(up, -1)
	if down != 1.0 {
		t.Fatalf("expected nextafter to be its own inverse, got %v", down)
	}
	if got := ops.NextAfter(0, 1); got <= 0 {
		t.Fatalf("expected a small positive step away from zero, got %v", got)
	}
	if got := ops.NextAfter(0, -1); got >= 0 {
		t.Fatalf("expected a small negative step away from zero, got %v", got)
	}
	nan := ops.NextAfter(ops.Inf(1), 1)
	if nan != ops.Inf(1) {
		t.Fatalf("expected +Inf to be a fixed point, got %v", nan)
	}
}

func TestBytesOpsPaddingAndNextAfter(t *testing.T) {
	ops := BytesOps(3)
	x := pad("ab", 3)
	if len(x) != 3 || x[2] != 0 {
		t.Fatalf("expected right-padded 3-byte string, got %q", x)
	}
	up := ops.NextAfter(x, 1)
	if up <= x {
		t.Fatalf("expected successor to sort after original, got %q vs %q", up, x)
	}
	down := ops.NextAfter(up, -1)
	if down != x {
		t.Fatalf("expected predecessor of successor to equal original, got %q want %q", down, x)
	}

	maxVal := ops.Inf(1)
	if ops.NextAfter(maxVal, 1) != maxVal {
		t.Fatalf("expected all-0xff to saturate on +direction")
	}
	minVal := ops.Inf(-1)
	if ops.NextAfter(minVal, -1) != minVal {
		t.Fatalf("expected all-0x00 to saturate on -direction")
	}
}

func TestClampInt(t *testing.T) {
	if got := clampInt(15, 0, 10); got != 10 {
		t.Fatalf("expected clamp to upper bound, got %d", got)
	}
	if got := clampInt(-5, 0, 10); got != 0 {
		t.Fatalf("expected clamp to lower bound, got %d", got)
	}
	if got := clampInt(5, 0, 10); got != 5 {
		t.Fatalf("expected in-range value unchanged, got %d", got)
	}
}
