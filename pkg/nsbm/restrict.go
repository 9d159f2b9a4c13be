package nsbm

import (
	"fmt"

	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
)

// RestrictAdjacency carves the adjacency submatrix over the nodes whose obs
// column key holds one of the given category values. It returns the
// restricted matrix together with the selected node indices in dataset
// order, which later expand restricted-space labels back to full-dataset
// columns. Edges between a selected and an unselected node are dropped with
// the unselected endpoint.
func RestrictAdjacency(ds *dataset.Dataset, key string, categories []string, adj *dataset.AdjacencyMatrix) (*dataset.AdjacencyMatrix, []int, error) {
	col, ok := ds.Obs(key)
	if !ok {
		return nil, nil, fmt.Errorf("restriction column %q not found", key)
	}
	wanted := make(map[string]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}
	var indices []int
	for i := 0; i < col.Len(); i++ {
		if col.Code(i) == dataset.MissingCode {
			continue
		}
		if wanted[col.Value(i)] {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil, nil, fmt.Errorf("restriction %q=%v selects no nodes", key, categories)
	}
	sub, err := adj.Submatrix(indices)
	if err != nil {
		return nil, nil, fmt.Errorf("restrict adjacency: %w", err)
	}
	return sub, indices, nil
}
