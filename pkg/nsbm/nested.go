package nsbm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
	"github.com/crespin/nsbm-clustering-service/pkg/engine"
)

// NestedModel fits a nested block model over the dataset's adjacency matrix
// with the given engine and writes the resulting hierarchy back into the
// dataset: one label column per surviving level named "<KeyAdded>_level_<l>"
// and a typed Annotation under Uns[KeyAdded]. With cfg.Copy the input is
// left untouched and a deep copy is annotated and returned; otherwise the
// input dataset itself is annotated and returned.
//
// All dataset mutation happens after inference and assembly have succeeded,
// so a failing run never leaves the container half-written.
func NestedModel(ds *dataset.Dataset, eng engine.Engine, cfg Config) (*dataset.Dataset, error) {
	return run(ds, eng, cfg, false)
}

func run(ds *dataset.Dataset, eng engine.Engine, cfg Config, fast bool) (*dataset.Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger

	out := ds
	if cfg.Copy {
		out = ds.Copy()
	}
	adj := out.Adjacency()
	if adj == nil {
		return nil, ErrNoAdjacency
	}

	var restrictIdx []int
	if cfg.RestrictKey != "" {
		sub, idx, err := RestrictAdjacency(out, cfg.RestrictKey, cfg.RestrictCategories, adj)
		if err != nil {
			return nil, err
		}
		adj, restrictIdx = sub, idx
		log.Info().Str("key", cfg.RestrictKey).Int("nodes", len(idx)).Msg("restricted clustering space")
	}

	g, err := eng.BuildGraph(adj, engine.BuildOptions{Directed: cfg.Directed, UseWeights: cfg.UseWeights})
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	minOpts := engine.MinimizeOptions{DegreeCorrected: cfg.DegreeCorrected, RandomSeed: cfg.RandomSeed}
	var st engine.State
	if fast {
		st, err = eng.NewState(g, cfg.HierarchyLength, minOpts)
	} else {
		st, err = eng.Minimize(g, minOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("initial partition: %w", err)
	}
	if err := st.Resize(cfg.HierarchyLength); err != nil {
		return nil, fmt.Errorf("resize hierarchy: %w", err)
	}

	var stats Stats
	if !fast {
		stats.Sweep, err = st.Sweep(cfg.SweepIterations, cfg.Multiflip)
		if err != nil {
			return nil, fmt.Errorf("sweep: %w", err)
		}
		log.Info().
			Int("iterations", cfg.SweepIterations).
			Int("moves", stats.Sweep.Moves).
			Msg("sweep phase done")
	}
	if cfg.Equilibrate {
		eq, err := st.Equilibrate(engine.EquilibrateOptions{
			Wait:      cfg.Wait,
			Breaks:    cfg.Breaks,
			Epsilon:   cfg.Epsilon,
			MaxIter:   cfg.MaxIterations,
			Multiflip: cfg.Multiflip,
		})
		if err != nil {
			return nil, fmt.Errorf("equilibrate: %w", err)
		}
		stats.Equilibrate = &eq
		log.Info().Float64("entropy_delta", eq.EntropyDelta).Msg("equilibration done")
	}

	var acc *MarginalAccumulator
	if cfg.CollectMarginals {
		acc = NewMarginalAccumulator(g.NumNodes(), st.NumLevels())
		// Single-move proposals during collection, so every recorded
		// iteration is one posterior sample.
		_, err := st.Equilibrate(engine.EquilibrateOptions{
			Wait:        cfg.Wait,
			Breaks:      cfg.Breaks,
			Epsilon:     cfg.Epsilon,
			MaxIter:     cfg.MaxIterations,
			ForceIter:   cfg.CollectIterations,
			OnIteration: acc.Collect,
		})
		if err != nil {
			return nil, fmt.Errorf("collect marginals: %w", err)
		}
		log.Info().Int("iterations", cfg.CollectIterations).Msg("marginal collection done")
	}

	levels := st.NumLevels()
	raw := make([][]int, levels)
	for l := range raw {
		raw[l], err = st.Project(l)
		if err != nil {
			return nil, fmt.Errorf("project level %d: %w", l, err)
		}
	}
	columns := RelabelLevels(raw)

	stats.LevelEntropy = make([]float64, levels)
	stats.Modularity = make([]float64, levels)
	for l := 0; l < levels; l++ {
		stats.LevelEntropy[l] = st.Entropy(l)
		q, err := g.Modularity(raw[l])
		if err != nil {
			return nil, fmt.Errorf("modularity at level %d: %w", l, err)
		}
		stats.Modularity[l] = q
	}

	ann := &Annotation{
		Params: Params{
			SweepIterations:   cfg.SweepIterations,
			Epsilon:           cfg.Epsilon,
			Wait:              cfg.Wait,
			Breaks:            cfg.Breaks,
			Equilibrate:       cfg.Equilibrate,
			CollectMarginals:  cfg.CollectMarginals,
			CollectIterations: cfg.CollectIterations,
			HierarchyLength:   cfg.HierarchyLength,
			Prune:             cfg.Prune,
		},
		RestrictIndices: restrictIdx,
	}
	if acc != nil {
		c0, err := acc.VertexCounts(raw[0])
		if err != nil {
			return nil, fmt.Errorf("vertex marginals: %w", err)
		}
		ann.CellMarginals = make([]*mat.Dense, levels)
		ann.CellMarginals[0] = c0
		for l := 1; l < levels; l++ {
			cl, err := AggregateLevel(c0, columns[0], columns[l])
			if err != nil {
				return nil, fmt.Errorf("aggregate marginals to level %d: %w", l, err)
			}
			ann.CellMarginals[l] = cl
		}
		ann.GroupMarginals = acc.GroupCounts()
		stats.MeanFieldEntropy = make([]float64, levels)
		for l, m := range ann.CellMarginals {
			stats.MeanFieldEntropy[l] = g.MeanFieldEntropy(m)
		}
	}
	ann.Stats = stats
	if cfg.SaveState {
		ann.State = st
	}

	pruned := make(map[int]bool)
	if cfg.Prune {
		if len(columns) < 2 {
			log.Warn().Msg("pruning skipped: hierarchy has fewer than two levels")
		} else {
			drop, err := PruneLevels(columns, false)
			if err != nil {
				return nil, fmt.Errorf("prune levels: %w", err)
			}
			for _, l := range drop {
				pruned[l] = true
			}
			log.Info().Ints("levels", drop).Msg("pruned redundant levels")
		}
	}

	// Everything below mutates the dataset; nothing above may.
	out.DropObsPrefix(cfg.KeyAdded + "_level_")
	for l, col := range columns {
		if l == 0 && !cfg.ReturnLow {
			continue
		}
		if pruned[l] {
			continue
		}
		if restrictIdx != nil {
			col = expandColumn(col, restrictIdx, out.NumNodes())
		}
		if err := out.SetObs(fmt.Sprintf("%s_level_%d", cfg.KeyAdded, l), col); err != nil {
			return nil, err
		}
	}
	out.Uns[cfg.KeyAdded] = ann
	log.Info().
		Str("key", cfg.KeyAdded).
		Int("levels", levels).
		Int("pruned", len(pruned)).
		Msg("clustering annotated")
	return out, nil
}

// expandColumn lifts a restricted-space label column back to the full node
// space; unselected nodes carry a missing value.
func expandColumn(col *dataset.Categorical, indices []int, n int) *dataset.Categorical {
	codes := make([]int, n)
	for i := range codes {
		codes[i] = dataset.MissingCode
	}
	for j, idx := range indices {
		codes[idx] = col.Code(j)
	}
	full, _ := dataset.NewCategorical(codes, col.Categories())
	return full
}
