package colidx

import "testing"

func TestTranslateSingleSided(t *testing.T) {
	ops := Int64Ops()

	lo, hi, empty, err := Translate(ops, []CompareOp{OpGE}, []int64{10})
	if err != nil || empty {
		t.Fatalf("unexpected error/empty: %v/%v", err, empty)
	}
	if lo != 10 || hi != ops.Inf(1) {
		t.Fatalf("unexpected [lo,hi] for >=10: [%d,%d]", lo, hi)
	}

	lo, hi, empty, err = Translate(ops, []CompareOp{OpLT}, []int64{10})
	if err != nil || empty {
		t.Fatalf("unexpected error/empty: %v/%v", err, empty)
	}
	if lo != ops.Inf(-1) || hi != 9 {
		t.Fatalf("unexpected [lo,hi] for <10: [%d,%d]", lo, hi)
	}

	lo, hi, empty, err = Translate(ops, []CompareOp{OpEQ}, []int64{7})
	if err != nil || empty || lo != 7 || hi != 7 {
		t.Fatalf("unexpected result for ==7: lo=%d hi=%d empty=%v err=%v", lo, hi, empty, err)
	}
}

func TestTranslateTwoSided(t *testing.T) {
	ops := Int64Ops()

	lo, hi, empty, err := Translate(ops, []CompareOp{OpGE, OpLE}, []int64{5, 15})
	if err != nil || empty {
		t.Fatalf("unexpected error/empty: %v/%v", err, empty)
	}
	if lo != 5 || hi != 15 {
		t.Fatalf("unexpected [lo,hi]: [%d,%d]", lo, hi)
	}

	// Order of the two operators shouldn't matter.
	lo2, hi2, empty2, err2 := Translate(ops, []CompareOp{OpLE, OpGE}, []int64{15, 5})
	if err2 != nil || empty2 || lo2 != lo || hi2 != hi {
		t.Fatalf("expected operator order to be irrelevant: [%d,%d]/%v vs [%d,%d]/%v", lo, hi, empty, lo2, hi2, empty2)
	}

	_, _, empty, err = Translate(ops, []CompareOp{OpGT, OpLT}, []int64{20, 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty {
		t.Fatal("expected lo > hi to report an empty range, not an error")
	}
}

func TestTranslateBadQuery(t *testing.T) {
	ops := Int64Ops()

	if _, _, _, err := Translate(ops, []CompareOp{OpGE, OpLE}, []int64{1}); err == nil {
		t.Fatal("expected operator/limit count mismatch to fail")
	}
	if _, _, _, err := Translate(ops, []CompareOp{OpGE, OpGT}, []int64{1, 2}); err == nil {
		t.Fatal("expected two lower-bound operators to fail")
	}
	if _, _, _, err := Translate(ops, []CompareOp{OpEQ, OpLE}, []int64{1, 2}); err == nil {
		t.Fatal("expected equality combined with a second operator to fail")
	}
	if _, _, _, err := Translate(ops, []CompareOp{OpGE, OpLE, OpLT}, []int64{1, 2, 3}); err == nil {
		t.Fatal("expected 3 operators to fail")
	}
}
