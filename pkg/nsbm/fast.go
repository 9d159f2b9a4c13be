package nsbm

import (
	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
	"github.com/crespin/nsbm-clustering-service/pkg/engine"
)

// FastModel fits a nested block model starting from a trivial single-group
// hierarchy instead of an agglomerative search, and skips the sweep phase.
// The whole fit is carried by equilibration, so the step is always run no
// matter what cfg.Equilibrate says. Output and annotation semantics match
// NestedModel exactly.
func FastModel(ds *dataset.Dataset, eng engine.Engine, cfg Config) (*dataset.Dataset, error) {
	cfg.Equilibrate = true
	return run(ds, eng, cfg, true)
}
