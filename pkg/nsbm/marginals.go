package nsbm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
	"github.com/crespin/nsbm-clustering-service/pkg/engine"
)

// MarginalAccumulator gathers marginal counts across the iterations of one
// collection phase. A fresh accumulator must be created for every phase;
// counts never carry over between phases, so stale state from a prior run
// cannot leak in.
type MarginalAccumulator struct {
	n      int
	levels int
	// vertex[i] holds level-0 iteration counts for node i, indexed by raw
	// group id and grown on demand.
	vertex [][]float64
	// group[l] counts, per raw group id, the iterations in which that id was
	// nonempty at level l. Sized n+1 as a defensive upper bound and trimmed
	// on read.
	group [][]float64
}

// NewMarginalAccumulator creates a zeroed accumulator for n nodes and the
// given hierarchy depth.
func NewMarginalAccumulator(n, levels int) *MarginalAccumulator {
	acc := &MarginalAccumulator{
		n:      n,
		levels: levels,
		vertex: make([][]float64, n),
		group:  make([][]float64, levels),
	}
	for l := range acc.group {
		acc.group[l] = make([]float64, n+1)
	}
	return acc
}

// Collect records one sampling iteration from the engine state. It is meant
// to be passed as the equilibration per-iteration callback. Raw ids outside
// the defensive bound are ignored rather than grown past it.
func (a *MarginalAccumulator) Collect(st engine.State) {
	for l := 0; l < a.levels && l < st.NumLevels(); l++ {
		labels, err := st.Project(l)
		if err != nil {
			continue
		}
		seen := make(map[int]bool)
		for _, id := range labels {
			if id >= 0 && id <= a.n && !seen[id] {
				seen[id] = true
				a.group[l][id]++
			}
		}
		if l == 0 {
			for i, id := range labels {
				if id < 0 || id > a.n {
					continue
				}
				for len(a.vertex[i]) <= id {
					a.vertex[i] = append(a.vertex[i], 0)
				}
				a.vertex[i][id]++
			}
		}
	}
}

// VertexCounts assembles the level-0 node-by-group count matrix. Columns
// follow the canonical label order of the final level-0 partition, given
// here as raw ids; counts accumulated for raw ids absent from the final
// partition belong to groups empty at convergence and are dropped.
func (a *MarginalAccumulator) VertexCounts(rawLevel0 []int) (*mat.Dense, error) {
	if len(rawLevel0) != a.n {
		return nil, fmt.Errorf("final partition has %d nodes, accumulator has %d", len(rawLevel0), a.n)
	}
	var order []int
	seen := make(map[int]bool)
	for _, id := range rawLevel0 {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	out := mat.NewDense(a.n, len(order), nil)
	for i := 0; i < a.n; i++ {
		for c, rawID := range order {
			if rawID >= 0 && rawID < len(a.vertex[i]) {
				out.Set(i, c, a.vertex[i][rawID])
			}
		}
	}
	return out, nil
}

// GroupCounts returns the per-level group-existence vectors, each trimmed to
// the highest raw id with a nonzero count plus one. A level that saw no
// nonempty group yields a zero-length vector; callers must tolerate that.
func (a *MarginalAccumulator) GroupCounts() [][]float64 {
	out := make([][]float64, a.levels)
	for l, counts := range a.group {
		out[l] = TrimGroupMarginal(counts)
	}
	return out
}

// TrimGroupMarginal slices a group-existence vector to the highest nonzero
// index plus one; an all-zero vector trims to length zero.
func TrimGroupMarginal(counts []float64) []float64 {
	last := -1
	for i, c := range counts {
		if c > 0 {
			last = i
		}
	}
	trimmed := make([]float64, last+1)
	copy(trimmed, counts[:last+1])
	return trimmed
}

// AggregateLevel derives the vertex-marginal count matrix of a coarser
// level from the level-0 counts. Because the hierarchy is nested, a node's
// level-0 group determines its group at every coarser level, so summing the
// level-0 columns that co-occur with each coarse group is exact, not an
// approximation. c0's columns must follow the canonical order of level0.
func AggregateLevel(c0 *mat.Dense, level0, levelL *dataset.Categorical) (*mat.Dense, error) {
	n, b0 := c0.Dims()
	if level0.Len() != n || levelL.Len() != n {
		return nil, fmt.Errorf("label columns cover %d and %d nodes, counts cover %d", level0.Len(), levelL.Len(), n)
	}
	if level0.NumCategories() != b0 {
		return nil, fmt.Errorf("level-0 column has %d groups, counts have %d columns", level0.NumCategories(), b0)
	}
	bl := levelL.NumCategories()

	// Co-occurrence indicator between level-0 and level-l groups; presence
	// suffices since every level-0 group maps into exactly one level-l group.
	cooccur := make([][]bool, b0)
	for g0 := range cooccur {
		cooccur[g0] = make([]bool, bl)
	}
	for i := 0; i < n; i++ {
		g0, gl := level0.Code(i), levelL.Code(i)
		if g0 == dataset.MissingCode || gl == dataset.MissingCode {
			return nil, fmt.Errorf("node %d carries a missing label", i)
		}
		cooccur[g0][gl] = true
	}

	out := mat.NewDense(n, bl, nil)
	for gl := 0; gl < bl; gl++ {
		for g0 := 0; g0 < b0; g0++ {
			if !cooccur[g0][gl] {
				continue
			}
			for i := 0; i < n; i++ {
				out.Set(i, gl, out.At(i, gl)+c0.At(i, g0))
			}
		}
	}
	return out, nil
}
