// Package greedy provides a deterministic reference engine conforming to the
// block-model contract. It searches nested hierarchies by agglomerative
// modularity maximization and refines them with greedy single-node moves.
// It is a stand-in collaborator for tests and small graphs, not a Bayesian
// sampler; entropy is reported as a modularity-based description-length
// proxy.
package greedy

import (
	"fmt"
	"math"
	"math/rand/v2"

	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"

	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
	"github.com/crespin/nsbm-clustering-service/pkg/engine"
)

// Engine implements engine.Engine.
type Engine struct{}

// New creates a greedy reference engine.
func New() *Engine { return &Engine{} }

// Name returns the registry name of the engine.
func (*Engine) Name() string { return "greedy" }

// BuildGraph converts the adjacency matrix into an undirected gonum graph.
// Directed adjacencies are symmetrized.
func (*Engine) BuildGraph(adj *dataset.AdjacencyMatrix, opts engine.BuildOptions) (engine.Graph, error) {
	if adj == nil {
		return nil, fmt.Errorf("adjacency matrix is nil")
	}
	if err := adj.Validate(); err != nil {
		return nil, fmt.Errorf("invalid adjacency matrix: %w", err)
	}
	n := adj.N()
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for _, e := range adj.Row(i) {
			if e.Col == i || e.Weight == 0 {
				continue // self-similarity carries no grouping information
			}
			w := e.Weight
			if !opts.UseWeights {
				w = 1
			}
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(e.Col), w))
		}
	}
	h := &graphHandle{g: g, n: n}
	edges := g.WeightedEdges()
	for edges.Next() {
		h.totalWeight += edges.WeightedEdge().Weight()
	}
	return h, nil
}

// Minimize builds an initial hierarchy: level 0 holds one group candidate
// per node, and each further level agglomerates the previous one until a
// single group remains. DegreeCorrected is accepted for contract parity and
// has no effect on the greedy search.
func (e *Engine) Minimize(g engine.Graph, opts engine.MinimizeOptions) (engine.State, error) {
	h, err := handle(g, e)
	if err != nil {
		return nil, err
	}
	src := rand.NewPCG(seedOf(opts), seedOf(opts))
	st := &state{h: h}
	ident := make([]int, h.n)
	for i := range ident {
		ident[i] = i
	}
	st.levels = append(st.levels, ident)

	var cur gograph.Undirected = h.g
	prev := h.n
	for prev > 1 {
		red := community.Modularize(cur, 1.0, src)
		comms := red.Communities()
		if len(comms) >= prev {
			break
		}
		b := make([]int, prev)
		for ci, nodes := range comms {
			for _, nd := range nodes {
				b[int(nd.ID())] = ci
			}
		}
		st.levels = append(st.levels, b)
		prev = len(comms)
		und, ok := red.(gograph.Undirected)
		if !ok {
			break
		}
		cur = und
	}
	if prev > 1 {
		st.levels = append(st.levels, make([]int, prev))
	}
	return st, nil
}

// NewState creates the fast-path starting hierarchy: one group candidate per
// node at level 0 and a single group at every level above.
func (e *Engine) NewState(g engine.Graph, levels int, opts engine.MinimizeOptions) (engine.State, error) {
	h, err := handle(g, e)
	if err != nil {
		return nil, err
	}
	if levels < 2 {
		levels = 2
	}
	st := &state{h: h}
	ident := make([]int, h.n)
	for i := range ident {
		ident[i] = i
	}
	st.levels = append(st.levels, ident, make([]int, h.n))
	if err := st.Resize(levels); err != nil {
		return nil, err
	}
	return st, nil
}

func handle(g engine.Graph, e *Engine) (*graphHandle, error) {
	h, ok := g.(*graphHandle)
	if !ok {
		return nil, fmt.Errorf("graph was not built by engine %q", e.Name())
	}
	return h, nil
}

func seedOf(opts engine.MinimizeOptions) uint64 {
	if opts.RandomSeed > 0 {
		return uint64(opts.RandomSeed)
	}
	return 1
}

// graphHandle implements engine.Graph over a gonum weighted graph.
type graphHandle struct {
	g           *simple.WeightedUndirectedGraph
	n           int
	totalWeight float64
}

func (h *graphHandle) NumNodes() int { return h.n }

// Modularity scores a flat partition with gonum's community quality measure.
func (h *graphHandle) Modularity(partition []int) (float64, error) {
	if len(partition) != h.n {
		return 0, fmt.Errorf("partition has %d entries, graph has %d nodes", len(partition), h.n)
	}
	groups := make(map[int][]gograph.Node)
	for i, gid := range partition {
		groups[gid] = append(groups[gid], simple.Node(i))
	}
	comms := make([][]gograph.Node, 0, len(groups))
	for _, nodes := range groups {
		comms = append(comms, nodes)
	}
	return community.Q(h.g, comms, 1.0), nil
}

// MeanFieldEntropy treats each row of the count matrix as an empirical
// group-membership distribution and sums the per-node entropies.
func (h *graphHandle) MeanFieldEntropy(marginals mat.Matrix) float64 {
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
			p := marginals.At(i, j) / total
			if p > 0 {
				s -= p * math.Log(p)
			}
		}
	}
	return s
}
