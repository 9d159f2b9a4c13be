package nsbm

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrNoAdjacency reports that the dataset carries no adjacency matrix
	// and none was supplied; a neighborhood graph must be computed first.
	ErrNoAdjacency = errors.New("no adjacency matrix: compute a neighborhood graph before clustering")

	// ErrMarginalsNeedEquilibration reports the invalid combination of
	// marginal collection without the equilibration step.
	ErrMarginalsNeedEquilibration = errors.New("cannot collect marginals without the equilibration step: enable Equilibrate or disable CollectMarginals")
)

// Config controls a nested block model run.
type Config struct {
	// SweepIterations is the number of proposal-acceptance iterations of the
	// sweep phase. The fast path skips the sweep.
	SweepIterations int `json:"sweep_iterations"`
	// MaxIterations bounds the equilibration loop.
	MaxIterations int `json:"max_iterations"`
	// Epsilon is the relative entropy improvement below which equilibration
	// iterations do not count as record-breaking.
	Epsilon float64 `json:"epsilon"`
	// Equilibrate runs the convergence-detection step. It should normally
	// stay on; marginals cannot be collected without it.
	Equilibrate bool `json:"equilibrate"`
	// Wait is the number of iterations to wait for a record-breaking event.
	Wait int `json:"wait"`
	// Breaks is the number of wait-windows without record-breaking events
	// needed to stop equilibration.
	Breaks int `json:"breaks"`
	// CollectMarginals gathers per-node group-membership counts over a
	// forced extra equilibration. It has a large impact on running time.
	CollectMarginals bool `json:"collect_marginals"`
	// CollectIterations is the forced iteration count of the collection
	// phase; higher values sharpen the probability estimates.
	CollectIterations int `json:"collect_iterations"`
	// HierarchyLength is the minimum hierarchy depth. Shallower discovered
	// hierarchies are padded with single-group levels, never truncated.
	HierarchyLength int `json:"hierarchy_length"`
	// DegreeCorrected enables degree correction in the minimization step.
	DegreeCorrected bool `json:"degree_corrected"`
	// Multiflip selects the multi-move proposal kernel.
	Multiflip bool `json:"multiflip"`
	// RestrictKey and RestrictCategories restrict clustering to nodes whose
	// obs column RestrictKey holds one of the given values.
	RestrictKey        string   `json:"restrict_key,omitempty"`
	RestrictCategories []string `json:"restrict_categories,omitempty"`
	// RandomSeed seeds the engine; values <= 0 use an engine default.
	RandomSeed int64 `json:"random_seed"`
	// KeyAdded is the output prefix: label columns are named
	// "<KeyAdded>_level_<l>" and the annotation is stored under KeyAdded.
	KeyAdded string `json:"key_added"`
	// Directed treats the adjacency as directed.
	Directed bool `json:"directed"`
	// UseWeights uses edge weights during inference.
	UseWeights bool `json:"use_weights"`
	// SaveState retains the raw engine state in the annotation.
	SaveState bool `json:"save_state"`
	// Prune drops levels whose grouping is identical to their predecessor.
	Prune bool `json:"prune"`
	// ReturnLow also attaches the level-0 column, which usually holds too
	// many groups to be informative. Marginals for level 0 are computed and
	// kept regardless.
	ReturnLow bool `json:"return_low"`
	// Copy clusters a copy of the dataset instead of annotating in place.
	Copy bool `json:"copy"`

	// Logger receives progress logging; defaults to a disabled logger.
	Logger zerolog.Logger `json:"-"`
}

// DefaultConfig returns the default run configuration.
func DefaultConfig() Config {
	return Config{
		SweepIterations:   10000,
		MaxIterations:     1000000,
		Epsilon:           1e-3,
		Equilibrate:       true,
		Wait:              1000,
		Breaks:            2,
		CollectIterations: 10000,
		HierarchyLength:   10,
		Multiflip:         true,
		KeyAdded:          "nsbm",
		Logger:            zerolog.Nop(),
	}
}

// Validate checks the configuration. It runs before any engine call, so an
// invalid combination never reaches the engine.
func (c Config) Validate() error {
	if c.KeyAdded == "" {
		return fmt.Errorf("output key must not be empty")
	}
	if c.HierarchyLength < 1 {
		return fmt.Errorf("hierarchy length must be positive, got %d", c.HierarchyLength)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("epsilon must be nonnegative, got %f", c.Epsilon)
	}
	if c.CollectMarginals {
		if !c.Equilibrate {
			return ErrMarginalsNeedEquilibration
		}
		if c.CollectIterations < 1 {
			return fmt.Errorf("collect iterations must be positive, got %d", c.CollectIterations)
		}
	}
	return nil
}
