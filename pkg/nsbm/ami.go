package nsbm

import (
	"fmt"
	"math"
)

// AdjustedMutualInfo computes the adjusted mutual information between two
// label assignments over the same nodes: mutual information corrected for
// chance agreement under the hypergeometric model of random labelings,
// normalized by the mean entropy.
//
// The score is exactly 1.0 when, and only when, the two assignments induce
// the same grouping of nodes (group names and numbering may differ). That
// case is detected structurally rather than through the floating-point
// formula, so the level pruner's hard equality cutoff is reproducible.
func AdjustedMutualInfo(a, b []int) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("label assignments must have the same length: %d != %d", len(a), len(b))
	}
	n := len(a)
	if n == 0 {
		return 0, fmt.Errorf("label assignments are empty")
	}

	ca, ka := denseCodes(a)
	cb, kb := denseCodes(b)

	nij := make([][]int, ka)
	for i := range nij {
		nij[i] = make([]int, kb)
	}
	ai := make([]int, ka)
	bj := make([]int, kb)
	for k := 0; k < n; k++ {
		nij[ca[k]][cb[k]]++
		ai[ca[k]]++
		bj[cb[k]]++
	}

	if identicalGrouping(nij) {
		return 1.0, nil
	}

	nf := float64(n)
	mi := 0.0
	for i := range nij {
		for j, c := range nij[i] {
			if c > 0 {
				mi += float64(c) / nf * math.Log(nf*float64(c)/(float64(ai[i])*float64(bj[j])))
			}
		}
	}
	ha := clusterEntropy(ai, n)
	hb := clusterEntropy(bj, n)
	emi := expectedMutualInfo(ai, bj, n)

	// Keep the denominator away from zero the way sklearn does, so
	// degenerate pairs stay finite.
	denom := 0.5*(ha+hb) - emi
	if denom >= 0 {
		denom = math.Max(denom, 1e-10)
	} else {
		denom = math.Min(denom, -1e-10)
	}
	return (mi - emi) / denom, nil
}

// denseCodes renumbers labels into 0..k-1 by first occurrence.
func denseCodes(labels []int) ([]int, int) {
	codes := make([]int, len(labels))
	index := make(map[int]int)
	for i, v := range labels {
		c, seen := index[v]
		if !seen {
			c = len(index)
			index[v] = c
		}
		codes[i] = c
	}
	return codes, len(index)
}

// identicalGrouping reports whether the contingency table describes two
// assignments that group the nodes identically: every row and every column
// holds exactly one nonzero cell.
func identicalGrouping(nij [][]int) bool {
	if len(nij) == 0 || len(nij) != len(nij[0]) {
		return false
	}
	colHits := make([]int, len(nij[0]))
	for _, row := range nij {
		rowHits := 0
		for j, c := range row {
			if c > 0 {
				rowHits++
				colHits[j]++
			}
		}
		if rowHits != 1 {
			return false
		}
	}
	for _, h := range colHits {
		if h != 1 {
			return false
		}
	}
	return true
}

func clusterEntropy(sizes []int, n int) float64 {
	h := 0.0
	for _, c := range sizes {
		if c > 0 {
			p := float64(c) / float64(n)
			h -= p * math.Log(p)
		}
	}
	return h
}

// expectedMutualInfo is the expectation of the mutual information between
// two random labelings with the given fixed cluster sizes, under the
// hypergeometric model.
func expectedMutualInfo(ai, bj []int, n int) float64 {
	logFact := make([]float64, n+1)
	for i := 2; i <= n; i++ {
		logFact[i] = logFact[i-1] + math.Log(float64(i))
	}
	nf := float64(n)
	emi := 0.0
	for _, a := range ai {
		for _, b := range bj {
			lo := a + b - n
			if lo < 1 {
				lo = 1
			}
			hi := a
			if b < hi {
				hi = b
			}
			for v := lo; v <= hi; v++ {
				term := float64(v) / nf * math.Log(nf*float64(v)/(float64(a)*float64(b)))
				logWeight := logFact[a] + logFact[b] + logFact[n-a] + logFact[n-b] -
					logFact[n] - logFact[v] - logFact[a-v] - logFact[b-v] - logFact[n-a-b+v]
				emi += term * math.Exp(logWeight)
			}
		}
	}
	return emi
}
