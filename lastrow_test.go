package colidx

import (
	"reflect"
	"testing"

	"github.com/colidx/colidx/ion"
)

func TestLastRowBufferFill(t *testing.T) {
	ops := Int64Ops()
	l := NewLastRowBuffer[int64](8, 2) // ss=8, cs=2, nbounds=3

	values := []int64{40, 10, 30, 20}
	orig := []int64{104, 101, 103, 102}
	if err := l.Fill(values, orig, ops); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if l.N != 4 {
		t.Fatalf("expected N=4, got %d", l.N)
	}
	wantValues := []int64{10, 20, 30, 40}
	if !reflect.DeepEqual(l.Values[:l.N], wantValues) {
		t.Fatalf("unexpected sorted values: %v", l.Values[:l.N])
	}
	wantIdx := []int64{101, 102, 103, 104}
	if !reflect.DeepEqual(l.Indices[:l.N], wantIdx) {
		t.Fatalf("unexpected sorted indices: %v", l.Indices[:l.N])
	}
	if l.Begin() != 10 || l.End() != 40 {
		t.Fatalf("unexpected begin/end: %v/%v", l.Begin(), l.End())
	}
	if l.Indices[l.ss-1] != int64(l.N) {
		t.Fatalf("expected repurposed trailing index cell to hold N=%d, got %d", l.N, l.Indices[l.ss-1])
	}

	if err := l.Fill(make([]int64, 8), make([]int64, 8), ops); err == nil {
		t.Fatal("expected a full-width fill to be rejected")
	}
}

func TestLastRowBufferRoundTrip(t *testing.T) {
	ops := Int64Ops()
	l := NewLastRowBuffer[int64](8, 2)
	if err := l.Fill([]int64{5, 1, 3}, []int64{2, 0, 1}, ops); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	var st ion.Symtab
	var buf ion.Buffer
	l.Encode(&buf, &st, ops)

	var outer ion.Buffer
	outer.StartChunk(&st)
	outer.UnsafeAppend(buf.Bytes())

	var st2 ion.Symtab
	rest, err := st2.Unmarshal(outer.Bytes())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, err := DecodeLastRowBuffer[int64](&st2, rest, 8, 2, ops)
	if err != nil {
		t.Fatalf("DecodeLastRowBuffer: %v", err)
	}
	if got.N != l.N {
		t.Fatalf("expected N=%d after round-trip, got %d", l.N, got.N)
	}
	if !reflect.DeepEqual(got.Values[:got.N], l.Values[:l.N]) {
		t.Fatalf("values mismatch after round-trip: got %v want %v", got.Values[:got.N], l.Values[:l.N])
	}
	if got.Begin() != l.Begin() || got.End() != l.End() {
		t.Fatalf("begin/end mismatch after round-trip")
	}
}
