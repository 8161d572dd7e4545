package colidx

import "testing"

func TestMemChunkedArrayAppendReadTruncate(t *testing.T) {
	arr := NewMemChunkedArray[int64](3)
	if arr.Width() != 3 {
		t.Fatalf("expected width 3, got %d", arr.Width())
	}
	if _, err := arr.AppendRow([]int64{1, 2, 3}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if _, err := arr.AppendRow([]int64{4, 5, 6}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if arr.Rows() != 2 {
		t.Fatalf("expected 2 rows, got %d", arr.Rows())
	}

	dst := make([]int64, 3)
	if _, err := arr.ReadRow(1, dst); err != nil {
		t.Fatalf("ReadRow: %v", err)
	}
	if dst[0] != 4 || dst[1] != 5 || dst[2] != 6 {
		t.Fatalf("unexpected row contents: %v", dst)
	}

	if _, err := arr.AppendRow([]int64{1, 2}); err == nil {
		t.Fatal("expected width mismatch to fail")
	}
	if _, err := arr.ReadRow(5, dst); err == nil {
		t.Fatal("expected out-of-range read to fail")
	}

	if err := arr.Truncate(1); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if arr.Rows() != 1 {
		t.Fatalf("expected 1 row after truncate, got %d", arr.Rows())
	}
	if err := arr.Truncate(5); err == nil {
		t.Fatal("expected out-of-range truncate to fail")
	}
}
