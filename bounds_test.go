package colidx

import (
	"reflect"
	"testing"

	"github.com/colidx/colidx/ion"
)

func TestBoundsArraysAppendSlice(t *testing.T) {
	b := &BoundsArrays[int64]{}
	cs := 2
	sorted := []int64{1, 2, 3, 4, 5, 6} // ss=6, cs=2, ncs=3

	if err := b.AppendSlice(sorted, cs); err != nil {
		t.Fatalf("AppendSlice: %v", err)
	}
	if b.NRows() != 1 {
		t.Fatalf("expected 1 row, got %d", b.NRows())
	}
	if b.Ranges[0] != [2]int64{1, 6} {
		t.Fatalf("unexpected range: %v", b.Ranges[0])
	}
	if !reflect.DeepEqual(b.Bounds[0], []int64{3, 5}) {
		t.Fatalf("unexpected bounds row: %v", b.Bounds[0])
	}
	wantA := []int64{1, 3, 5}
	wantZ := []int64{2, 4, 6}
	wantM := []int64{2, 4, 6} // cs/2 == 1, so middle index within each 2-wide chunk is index 1 -> second element
	if !reflect.DeepEqual(b.ABounds, wantA) {
		t.Fatalf("unexpected abounds: %v", b.ABounds)
	}
	if !reflect.DeepEqual(b.ZBounds, wantZ) {
		t.Fatalf("unexpected zbounds: %v", b.ZBounds)
	}
	if !reflect.DeepEqual(b.MBounds, wantM) {
		t.Fatalf("unexpected mbounds: %v", b.MBounds)
	}
	if b.MRanges[0] != 4 { // mbounds[ncs/2] with ncs=3
		t.Fatalf("unexpected mranges: %v", b.MRanges)
	}

	// A second slice whose length is not a multiple of chunksize is rejected.
	if err := b.AppendSlice([]int64{1, 2, 3}, 2); err == nil {
		t.Fatal("expected odd-length slice (not a multiple of chunksize) to fail")
	}
}

func TestBoundsArraysResetAndRoundTrip(t *testing.T) {
	b := &BoundsArrays[int64]{}
	cs := 2
	if err := b.AppendSlice([]int64{1, 2, 3, 4}, cs); err != nil {
		t.Fatalf("AppendSlice: %v", err)
	}
	if err := b.AppendSlice([]int64{10, 20, 30, 40}, cs); err != nil {
		t.Fatalf("AppendSlice: %v", err)
	}

	ops := Int64Ops()
	var st ion.Symtab
	var buf ion.Buffer
	b.Encode(&buf, &st, ops)

	var outer ion.Buffer
	outer.StartChunk(&st)
	outer.UnsafeAppend(buf.Bytes())

	var st2 ion.Symtab
	rest, err := st2.Unmarshal(outer.Bytes())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, err := DecodeBoundsArrays[int64](&st2, rest, ops)
	if err != nil {
		t.Fatalf("DecodeBoundsArrays: %v", err)
	}
	if got.NRows() != b.NRows() {
		t.Fatalf("expected %d rows after round-trip, got %d", b.NRows(), got.NRows())
	}
	if !reflect.DeepEqual(got.Ranges, b.Ranges) {
		t.Fatalf("ranges mismatch after round-trip: got %v want %v", got.Ranges, b.Ranges)
	}
	if !reflect.DeepEqual(got.ABounds, b.ABounds) {
		t.Fatalf("abounds mismatch after round-trip: got %v want %v", got.ABounds, b.ABounds)
	}

	b.Reset()
	if b.NRows() != 0 {
		t.Fatalf("expected 0 rows after Reset, got %d", b.NRows())
	}
}
