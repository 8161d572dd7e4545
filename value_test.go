package colidx

import "testing"

func TestTypeKindString(t *testing.T) {
	cases := map[TypeKind]string{
		KindBool:    "bool",
		KindInt64:   "int64",
		KindFloat64: "float64",
		KindBytes:   "bytes",
		TypeKind(99): "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("TypeKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestOpsZeroAndItemSize(t *testing.T) {
	ops := BytesOps(4)
	if ops.ItemSize != 4 {
		t.Fatalf("expected ItemSize 4, got %d", ops.ItemSize)
	}
	if len(ops.Zero) != 4 {
		t.Fatalf("expected zero value of width 4, got %q", ops.Zero)
	}
	if Int64Ops().ItemSize != 0 {
		t.Fatalf("expected numeric kinds to have ItemSize 0")
	}
}
