package colidx

// OverlapMetric is spec.md §4.6: given the per-slice ranges, report
// the ordered-pair overlap count, its distribution by pair distance,
// and the normalized total overlap used as the Optimizer's
// termination signal. The O(n^2) pairwise scan is the contract
// spec.md §9 calls out as acceptable only while nslices stays small;
// it reports exact ordered-pair accounting, not a compressed union,
// so a sweep-line union-of-intervals approach would answer a
// different question and is not a substitute here.
func OverlapMetric[T any](ranges [][2]T, ops Ops[T]) (noverlaps int, multiplicity []int, toverlap float64) {
	n := len(ranges)
	if n < 2 {
		return 0, make([]int, n), 0
	}
	multiplicity = make([]int, n)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if ops.Less(ranges[j][0], ranges[i][1]) {
				noverlaps++
				multiplicity[j-i]++
			}
		}
	}

	if ops.ToFloat == nil {
		// Byte strings (and any other kind without a meaningful
		// numeric distance) report toverlap = -1 per spec.md §4.6.
		return noverlaps, multiplicity, -1
	}

	span := ops.ToFloat(ranges[n-1][1]) - ops.ToFloat(ranges[0][0])
	if span == 0 {
		span = 1
	}
	var total float64
	for i := 0; i < n; i++ {
		iHi := ops.ToFloat(ranges[i][1])
		for j := i + 1; j < n; j++ {
			jLo := ops.ToFloat(ranges[j][0])
			if iHi > jLo {
				total += (iHi - jLo) / span
			}
		}
	}
	return noverlaps, multiplicity, total
}
