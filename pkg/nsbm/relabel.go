package nsbm

import (
	"strconv"

	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
)

// RelabelLevels renumbers each level's raw group ids into dense, zero-based
// canonical labels. Within a level, canonical ids follow the order in which
// the raw ids are first encountered scanning nodes by index, so the result
// depends only on the grouping, never on the numeric value of the raw ids.
// The raw table is not modified. Each returned column is an independent
// ordered categorical, so reused small integers never collide across levels.
func RelabelLevels(raw [][]int) []*dataset.Categorical {
	columns := make([]*dataset.Categorical, len(raw))
	for l, ids := range raw {
		columns[l] = relabelLevel(ids)
	}
	return columns
}

func relabelLevel(ids []int) *dataset.Categorical {
	codes := make([]int, len(ids))
	canon := make(map[int]int)
	for i, id := range ids {
		c, seen := canon[id]
		if !seen {
			c = len(canon)
			canon[id] = c
		}
		codes[i] = c
	}
	categories := make([]string, len(canon))
	for c := range categories {
		categories[c] = strconv.Itoa(c)
	}
	col, _ := dataset.NewCategorical(codes, categories)
	return col
}
