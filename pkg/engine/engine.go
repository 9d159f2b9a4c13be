// Package engine defines the contract between the clustering pipeline and a
// block-model inference engine. The pipeline treats the engine as an opaque
// collaborator: it builds a graph from an adjacency matrix, searches and
// samples nested partitions, and exposes per-level projections and
// statistics. Any conforming implementation can be substituted, including a
// deterministic stub for tests.
package engine

import (
	"gonum.org/v1/gonum/mat"

	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
)

// BuildOptions control graph construction from an adjacency matrix.
type BuildOptions struct {
	// Directed treats the adjacency as directed. Engines that only support
	// undirected graphs symmetrize the input.
	Directed bool
	// UseWeights uses the stored edge weights; otherwise every edge counts 1.
	UseWeights bool
}

// MinimizeOptions control the initial nested-partition search.
type MinimizeOptions struct {
	DegreeCorrected bool
	// RandomSeed seeds the engine's generator. Values <= 0 select an
	// engine-chosen default.
	RandomSeed int64
}

// MoveStats aggregates proposal statistics from one sampling phase.
type MoveStats struct {
	EntropyDelta float64 `json:"entropy_delta"`
	Attempts     int     `json:"attempts"`
	Moves        int     `json:"moves"`
}

// EquilibrateOptions control the convergence-detection loop.
type EquilibrateOptions struct {
	// Wait is the number of outer iterations to wait for a record-breaking
	// entropy improvement.
	Wait int
	// Breaks is the number of consecutive wait-windows without improvement
	// required to stop.
	Breaks int
	// Epsilon is the relative entropy improvement below which an iteration
	// does not count as record-breaking.
	Epsilon float64
	// MaxIter bounds the number of outer iterations.
	MaxIter int
	// Multiflip selects the multi-move proposal kernel.
	Multiflip bool
	// SweepsPerIter is the number of inner sweeps per outer iteration;
	// engines default it when <= 0.
	SweepsPerIter int
	// ForceIter forces a minimum number of outer iterations, 0 for none.
	ForceIter int
	// OnIteration, when non-nil, is invoked once per outer iteration with
	// the current state.
	OnIteration func(State)
}

// Graph is the engine-side structural view of an adjacency matrix.
type Graph interface {
	NumNodes() int
	// Modularity scores a flat partition of the graph's nodes.
	Modularity(partition []int) (float64, error)
	// MeanFieldEntropy computes the mean-field entropy of a node-by-group
	// marginal count matrix.
	MeanFieldEntropy(marginals mat.Matrix) float64
}

// State is a nested partition hierarchy owned by an engine. Level 0 is the
// finest level; raw group ids are engine artifacts with no guarantee of
// density or numeric meaning beyond within-level equality.
type State interface {
	NumLevels() int
	// Project returns the raw group id of every node at the given level.
	Project(level int) ([]int, error)
	// Entropy returns the description length of the partition at the level.
	Entropy(level int) float64
	// Resize pads the hierarchy with single-group levels up to the given
	// depth. Deeper hierarchies are never truncated.
	Resize(levels int) error
	// Sweep runs niter proposal-acceptance iterations over the partition.
	Sweep(niter int, multiflip bool) (MoveStats, error)
	// Equilibrate sweeps until convergence per the options.
	Equilibrate(opts EquilibrateOptions) (MoveStats, error)
}

// Engine is a block-model inference implementation.
type Engine interface {
	Name() string
	// BuildGraph converts an adjacency matrix into the engine's graph form.
	BuildGraph(adj *dataset.AdjacencyMatrix, opts BuildOptions) (Graph, error)
	// Minimize searches for an initial nested partition of the graph.
	Minimize(g Graph, opts MinimizeOptions) (State, error)
	// NewState creates a hierarchy of the given depth where every level
	// holds a single group, the starting point of the fast path.
	NewState(g Graph, levels int, opts MinimizeOptions) (State, error)
}
