package colidx

import (
	"math"
	"reflect"
	"testing"
)

func newAppender(t *testing.T, ss, cs int) *Appender[int64] {
	t.Helper()
	return &Appender[int64]{
		Ops:   Int64Ops(),
		CS:    cs,
		SS:    ss,
		Bound: &BoundsArrays[int64]{},
		Last:  NewLastRowBuffer[int64](ss, cs),
		Data:  NewMemChunkedArray[int64](ss),
		IDs:   NewMemChunkedArray[int64](ss),
	}
}

func TestArgsortStable(t *testing.T) {
	ops := Int64Ops()
	values := []int64{3, 1, 3, 2, 1}
	perm := argsort(values, ops)
	want := []int{1, 4, 3, 0, 2}
	if !reflect.DeepEqual(perm, want) {
		t.Fatalf("expected stable argsort %v, got %v", want, perm)
	}
}

func TestAppenderAppendSortsAndRecordsIDs(t *testing.T) {
	a := newAppender(t, 4, 2)
	if err := a.Append([]int64{40, 10, 30, 20}, 100); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if a.Bound.NRows() != 1 {
		t.Fatalf("expected 1 bound row, got %d", a.Bound.NRows())
	}
	row := make([]int64, 4)
	if _, err := a.Data.ReadRow(0, row); err != nil {
		t.Fatalf("ReadRow: %v", err)
	}
	if !reflect.DeepEqual(row, []int64{10, 20, 30, 40}) {
		t.Fatalf("expected sorted row, got %v", row)
	}
	ids := make([]int64, 4)
	if _, err := a.IDs.ReadRow(0, ids); err != nil {
		t.Fatalf("ReadRow: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{101, 103, 102, 100}) {
		t.Fatalf("expected ids permuted the same way as values, got %v", ids)
	}

	if err := a.Append([]int64{1, 2}, 200); err == nil {
		t.Fatal("expected a wrong-width append to fail")
	}
}

func TestAppenderRejectsNaN(t *testing.T) {
	a := &Appender[float64]{
		Ops:   Float64Ops(),
		CS:    2,
		SS:    4,
		Bound: &BoundsArrays[float64]{},
		Last:  NewLastRowBuffer[float64](4, 2),
		Data:  NewMemChunkedArray[float64](4),
		IDs:   NewMemChunkedArray[int64](4),
	}
	vals := []float64{math.NaN(), 2, 3, 4}
	if err := a.Append(vals, 0); err == nil {
		t.Fatal("expected NaN value to be rejected")
	}
}

func TestAppenderAppendLastRowFillsBuffer(t *testing.T) {
	a := newAppender(t, 4, 2)
	if err := a.AppendLastRow([]int64{5, 1, 3}, 50, 123); err != nil {
		t.Fatalf("AppendLastRow: %v", err)
	}
	if a.Last.N != 3 {
		t.Fatalf("expected last-row N=3, got %d", a.Last.N)
	}
	if !reflect.DeepEqual(a.Last.Values[:a.Last.N], []int64{1, 3, 5}) {
		t.Fatalf("unexpected sorted last-row values: %v", a.Last.Values[:a.Last.N])
	}

	if err := a.AppendLastRow(make([]int64, 4), 0, 0); err == nil {
		t.Fatal("expected a full-width last-row append to fail")
	}
}

func TestAppenderFullAppendClearsLastRow(t *testing.T) {
	a := newAppender(t, 4, 2)
	if err := a.AppendLastRow([]int64{1, 2}, 0, 10); err != nil {
		t.Fatalf("AppendLastRow: %v", err)
	}
	if a.Last.N == 0 {
		t.Fatal("expected last-row buffer to hold data before full append")
	}
	if err := a.Append([]int64{1, 2, 3, 4}, 100); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if a.Last.N != 0 {
		t.Fatalf("expected a full append to clear the last-row buffer, N=%d", a.Last.N)
	}
}
