// Package nsbm is the hierarchy post-processing and aggregation layer over a
// block-model inference engine: it relabels raw per-level partitions into
// dense canonical labels, propagates finest-level marginal counts up the
// hierarchy, prunes redundant levels, and writes labels plus run statistics
// into the annotated dataset.
package nsbm

import (
	"gonum.org/v1/gonum/mat"

	"github.com/crespin/nsbm-clustering-service/pkg/engine"
)

// Params records the effective configuration of a finished run.
type Params struct {
	SweepIterations   int     `json:"sweep_iterations"`
	Epsilon           float64 `json:"epsilon"`
	Wait              int     `json:"wait"`
	Breaks            int     `json:"breaks"`
	Equilibrate       bool    `json:"equilibrate"`
	CollectMarginals  bool    `json:"collect_marginals"`
	CollectIterations int     `json:"collect_iterations"`
	HierarchyLength   int     `json:"hierarchy_length"`
	Prune             bool    `json:"prune"`
}

// Stats carries the run statistics of a clustering call. LevelEntropy and
// Modularity are indexed by hierarchy level; MeanFieldEntropy is nil unless
// marginals were collected.
type Stats struct {
	Sweep            engine.MoveStats  `json:"sweep"`
	Equilibrate      *engine.MoveStats `json:"equilibrate,omitempty"`
	LevelEntropy     []float64         `json:"level_entropy"`
	Modularity       []float64         `json:"modularity"`
	MeanFieldEntropy []float64         `json:"mean_field_entropy,omitempty"`
}

// Annotation is the typed record a run stores under Dataset.Uns[key]. It is
// immutable once attached.
type Annotation struct {
	Params Params `json:"params"`
	Stats  Stats  `json:"stats"`

	// CellMarginals holds, per hierarchy level, the node-by-group matrix of
	// iteration counts. It is nil, not empty, when marginal collection was
	// disabled, so absence is observable.
	CellMarginals []*mat.Dense `json:"-"`
	// GroupMarginals holds, per level, the trimmed group-existence counts
	// indexed by raw group id.
	GroupMarginals [][]float64 `json:"group_marginals,omitempty"`

	// State is the raw engine state, retained only when requested.
	State engine.State `json:"-"`
	// RestrictIndices maps restricted-space node indices back to dataset
	// indices; nil when the run was not restricted.
	RestrictIndices []int `json:"restrict_indices,omitempty"`
}

// HasMarginals reports whether marginal collection ran.
func (a *Annotation) HasMarginals() bool { return a.CellMarginals != nil }
