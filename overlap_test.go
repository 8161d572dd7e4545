package colidx

import "testing"

func TestOverlapMetricNoOverlap(t *testing.T) {
	ranges := [][2]int64{{1, 2}, {3, 4}, {5, 6}}
	noverlaps, mult, tover := OverlapMetric(ranges, Int64Ops())
	if noverlaps != 0 {
		t.Fatalf("expected 0 overlaps, got %d", noverlaps)
	}
	for i, m := range mult {
		if m != 0 {
			t.Fatalf("expected 0 multiplicity at %d, got %d", i, m)
		}
	}
	if tover != 0 {
		t.Fatalf("expected toverlap 0, got %v", tover)
	}
}

func TestOverlapMetricOverlapping(t *testing.T) {
	ranges := [][2]int64{{1, 10}, {5, 15}, {20, 30}}
	noverlaps, _, tover := OverlapMetric(ranges, Int64Ops())
	if noverlaps != 1 {
		t.Fatalf("expected 1 overlapping pair, got %d", noverlaps)
	}
	if tover <= 0 {
		t.Fatalf("expected a positive total overlap, got %v", tover)
	}
}

func TestOverlapMetricFewerThanTwo(t *testing.T) {
	noverlaps, mult, tover := OverlapMetric([][2]int64{{1, 2}}, Int64Ops())
	if noverlaps != 0 || tover != 0 {
		t.Fatalf("expected trivial result for <2 ranges, got noverlaps=%d tover=%v", noverlaps, tover)
	}
	if len(mult) != 1 {
		t.Fatalf("expected a 1-length multiplicity slice, got %d", len(mult))
	}
}

func TestOverlapMetricBytesReportsNegativeOne(t *testing.T) {
	ops := BytesOps(2)
	ranges := [][2]string{{pad("a", 2), pad("b", 2)}, {pad("a", 2), pad("c", 2)}}
	_, _, tover := OverlapMetric(ranges, ops)
	if tover != -1 {
		t.Fatalf("expected toverlap -1 for a kind with no ToFloat, got %v", tover)
	}
}
