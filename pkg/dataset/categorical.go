package dataset

import "fmt"

// MissingCode marks a node that carries no value in a categorical column.
const MissingCode = -1

// Categorical is an ordered categorical column over the nodes of a dataset.
// Every node carries a code indexing into an ordered category list; category
// order, not lexicographic order of the names, defines sort order. Two
// columns never share category identity, even when the textual names
// coincide, so small integers can be reused freely across hierarchy levels.
type Categorical struct {
	codes      []int
	categories []string
}

// NewCategorical builds a categorical column from per-node codes and an
// ordered category list. A code of MissingCode marks a node without a value.
func NewCategorical(codes []int, categories []string) (*Categorical, error) {
	for i, c := range codes {
		if c != MissingCode && (c < 0 || c >= len(categories)) {
			return nil, fmt.Errorf("code %d at position %d out of range for %d categories", c, i, len(categories))
		}
	}
	col := &Categorical{
		codes:      make([]int, len(codes)),
		categories: make([]string, len(categories)),
	}
	copy(col.codes, codes)
	copy(col.categories, categories)
	return col, nil
}

// CategoricalFromValues builds a categorical column whose categories are
// ordered by first occurrence of each distinct value.
func CategoricalFromValues(values []string) *Categorical {
	col := &Categorical{codes: make([]int, len(values))}
	index := make(map[string]int)
	for i, v := range values {
		code, seen := index[v]
		if !seen {
			code = len(col.categories)
			index[v] = code
			col.categories = append(col.categories, v)
		}
		col.codes[i] = code
	}
	return col
}

// Len returns the number of nodes covered by the column.
func (c *Categorical) Len() int { return len(c.codes) }

// NumCategories returns the number of categories.
func (c *Categorical) NumCategories() int { return len(c.categories) }

// Code returns the category code of node i, or MissingCode.
func (c *Categorical) Code(i int) int { return c.codes[i] }

// Codes returns a copy of the per-node category codes.
func (c *Categorical) Codes() []int {
	out := make([]int, len(c.codes))
	copy(out, c.codes)
	return out
}

// Value returns the category name of node i, or "" for a missing value.
func (c *Categorical) Value(i int) string {
	if c.codes[i] == MissingCode {
		return ""
	}
	return c.categories[c.codes[i]]
}

// Values returns the per-node category names.
func (c *Categorical) Values() []string {
	out := make([]string, len(c.codes))
	for i := range c.codes {
		out[i] = c.Value(i)
	}
	return out
}

// Categories returns a copy of the ordered category list.
func (c *Categorical) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// Copy returns a deep copy of the column.
func (c *Categorical) Copy() *Categorical {
	cp, _ := NewCategorical(c.codes, c.categories)
	return cp
}
