package nsbm

import (
	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
)

// PruneLevels identifies hierarchy levels that carry no information beyond
// their immediate predecessor: for every consecutive pair of level columns,
// the later level is flagged when the adjusted mutual information between
// the two label assignments is exactly 1.0, meaning the two levels group
// the nodes identically even if group names differ. The returned slice
// holds the level indices to remove; with inverse set it holds the
// complement, the levels whose grouping changed.
//
// Fewer than two levels leaves nothing to compare and returns nil. Levels
// are only ever removed from the output, never renamed or merged.
func PruneLevels(columns []*dataset.Categorical, inverse bool) ([]int, error) {
	if len(columns) < 2 {
		return nil, nil
	}
	var redundant, informative []int
	for l := 1; l < len(columns); l++ {
		score, err := AdjustedMutualInfo(columns[l-1].Codes(), columns[l].Codes())
		if err != nil {
			return nil, err
		}
		if score == 1.0 {
			redundant = append(redundant, l)
		} else {
			informative = append(informative, l)
		}
	}
	if inverse {
		return informative, nil
	}
	return redundant, nil
}
