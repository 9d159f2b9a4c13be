// Package enginetest provides a deterministic, scriptable engine used to
// test the clustering pipeline without a real sampler.
package enginetest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
	"github.com/crespin/nsbm-clustering-service/pkg/engine"
)

// Stub implements engine.Engine with scripted behavior. Hierarchy holds the
// per-node raw group ids the state projects for each level; it must have at
// least one level and every level must cover all nodes.
type Stub struct {
	// Hierarchy[l][i] is the raw group id of node i at level l.
	Hierarchy [][]int
	// IterationHierarchies, when set, replaces the projected hierarchy
	// during each marginal-collection callback, cycling when the forced
	// iteration count exceeds its length. The scripted Hierarchy is restored
	// afterwards so the final projection stays deterministic.
	IterationHierarchies [][][]int
	// SweepStats and EquilibrateStats are returned verbatim.
	SweepStats       engine.MoveStats
	EquilibrateStats engine.MoveStats
	// ModularityScore is returned for every partition.
	ModularityScore float64

	// Call counters, for precondition tests.
	BuildCalls       int
	MinimizeCalls    int
	NewStateCalls    int
	SweepCalls       int
	EquilibrateCalls int
}

// Name returns the stub's registry name.
func (*Stub) Name() string { return "stub" }

// BuildGraph validates squareness only; the stub has no structural view.
func (s *Stub) BuildGraph(adj *dataset.AdjacencyMatrix, opts engine.BuildOptions) (engine.Graph, error) {
	s.BuildCalls++
	if adj == nil {
		return nil, fmt.Errorf("adjacency matrix is nil")
	}
	return &stubGraph{stub: s, n: adj.N()}, nil
}

// Minimize returns a state projecting the scripted hierarchy.
func (s *Stub) Minimize(g engine.Graph, opts engine.MinimizeOptions) (engine.State, error) {
	s.MinimizeCalls++
	return s.newState(g)
}

// NewState ignores the requested depth and returns the scripted hierarchy,
// which tests size as needed.
func (s *Stub) NewState(g engine.Graph, levels int, opts engine.MinimizeOptions) (engine.State, error) {
	s.NewStateCalls++
	return s.newState(g)
}

func (s *Stub) newState(g engine.Graph) (engine.State, error) {
	gh, ok := g.(*stubGraph)
	if !ok {
		return nil, fmt.Errorf("graph was not built by the stub engine")
	}
	if len(s.Hierarchy) == 0 {
		return nil, fmt.Errorf("stub has no scripted hierarchy")
	}
	levels := make([][]int, len(s.Hierarchy))
	for l, row := range s.Hierarchy {
		if len(row) != gh.n {
			return nil, fmt.Errorf("scripted level %d has %d nodes, graph has %d", l, len(row), gh.n)
		}
		levels[l] = append([]int(nil), row...)
	}
	return &stubState{stub: s, levels: levels}, nil
}

type stubGraph struct {
	stub *Stub
	n    int
}

func (g *stubGraph) NumNodes() int { return g.n }

func (g *stubGraph) Modularity(partition []int) (float64, error) {
	if len(partition) != g.n {
		return 0, fmt.Errorf("partition has %d entries, graph has %d nodes", len(partition), g.n)
	}
	return g.stub.ModularityScore, nil
}

func (g *stubGraph) MeanFieldEntropy(marginals mat.Matrix) float64 {
	rows, cols := marginals.Dims()
	var s float64
	for i := 0; i < rows; i++ {
		var total float64
		for j := 0; j < cols; j++ {
			total += marginals.At(i, j)
		}
		if total == 0 {
			continue
		}
		for j := 0; j < cols; j++ {
			if p := marginals.At(i, j) / total; p > 0 {
				s -= p * math.Log(p)
			}
		}
	}
	return s
}

type stubState struct {
	stub   *Stub
	levels [][]int
}

func (st *stubState) NumLevels() int { return len(st.levels) }

func (st *stubState) Project(level int) ([]int, error) {
	if level < 0 || level >= len(st.levels) {
		return nil, fmt.Errorf("level %d out of range for %d-level hierarchy", level, len(st.levels))
	}
	return append([]int(nil), st.levels[level]...), nil
}

func (st *stubState) Entropy(level int) float64 { return 0 }

func (st *stubState) Resize(levels int) error {
	for len(st.levels) < levels {
		st.levels = append(st.levels, make([]int, len(st.levels[0])))
	}
	return nil
}

func (st *stubState) Sweep(niter int, multiflip bool) (engine.MoveStats, error) {
	st.stub.SweepCalls++
	return st.stub.SweepStats, nil
}

func (st *stubState) Equilibrate(opts engine.EquilibrateOptions) (engine.MoveStats, error) {
	st.stub.EquilibrateCalls++
	if opts.OnIteration != nil {
		iters := opts.ForceIter
		if iters <= 0 {
			iters = 1
		}
		saved := st.levels
		for it := 0; it < iters; it++ {
			if len(st.stub.IterationHierarchies) > 0 {
				scripted := st.stub.IterationHierarchies[it%len(st.stub.IterationHierarchies)]
				levels := make([][]int, len(scripted))
				for l, row := range scripted {
					levels[l] = append([]int(nil), row...)
				}
				st.levels = levels
			}
			opts.OnIteration(st)
		}
		st.levels = saved
	}
	return st.stub.EquilibrateStats, nil
}
