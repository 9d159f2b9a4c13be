package dataset

import "fmt"

// MatrixEntry is one stored entry of a sparse adjacency row.
type MatrixEntry struct {
	Col    int     `json:"col"`
	Weight float64 `json:"weight"`
}

// AdjacencyMatrix is a sparse, square matrix of nonnegative edge weights,
// stored row-major. It is the similarity-graph input to clustering and is
// treated as read-only once handed to a pipeline.
type AdjacencyMatrix struct {
	n    int
	rows [][]MatrixEntry
}

// NewAdjacencyMatrix creates an empty n x n adjacency matrix.
func NewAdjacencyMatrix(n int) (*AdjacencyMatrix, error) {
	if n <= 0 {
		return nil, fmt.Errorf("adjacency matrix must have positive size, got %d", n)
	}
	return &AdjacencyMatrix{n: n, rows: make([][]MatrixEntry, n)}, nil
}

// AdjacencyFromDense builds a sparse adjacency matrix from dense row data.
// The input must be square; zero entries are not stored.
func AdjacencyFromDense(values [][]float64) (*AdjacencyMatrix, error) {
	m, err := NewAdjacencyMatrix(len(values))
	if err != nil {
		return nil, err
	}
	for i, row := range values {
		if len(row) != len(values) {
			return nil, fmt.Errorf("adjacency matrix is not square: row %d has %d entries, want %d", i, len(row), len(values))
		}
		for j, w := range row {
			if w == 0 {
				continue
			}
			if err := m.Set(i, j, w); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// N returns the matrix dimension.
func (m *AdjacencyMatrix) N() int { return m.n }

// Set stores a nonnegative weight at (i, j). Setting the same entry twice
// appends; callers construct each entry once.
func (m *AdjacencyMatrix) Set(i, j int, weight float64) error {
	if i < 0 || i >= m.n || j < 0 || j >= m.n {
		return fmt.Errorf("entry (%d, %d) out of range for %dx%d matrix", i, j, m.n, m.n)
	}
	if weight < 0 {
		return fmt.Errorf("negative weight %f at (%d, %d)", weight, i, j)
	}
	m.rows[i] = append(m.rows[i], MatrixEntry{Col: j, Weight: weight})
	return nil
}

// Row returns the stored entries of row i. The returned slice is owned by
// the matrix and must not be modified.
func (m *AdjacencyMatrix) Row(i int) []MatrixEntry { return m.rows[i] }

// NNZ returns the number of stored entries.
func (m *AdjacencyMatrix) NNZ() int {
	total := 0
	for _, row := range m.rows {
		total += len(row)
	}
	return total
}

// Submatrix returns the adjacency restricted to the given node indices, in
// the given order. Entries whose endpoints both survive are kept, reindexed
// to the restricted space.
func (m *AdjacencyMatrix) Submatrix(indices []int) (*AdjacencyMatrix, error) {
	remap := make(map[int]int, len(indices))
	for k, idx := range indices {
		if idx < 0 || idx >= m.n {
			return nil, fmt.Errorf("restriction index %d out of range for %d nodes", idx, m.n)
		}
		if _, dup := remap[idx]; dup {
			return nil, fmt.Errorf("duplicate restriction index %d", idx)
		}
		remap[idx] = k
	}
	sub, err := NewAdjacencyMatrix(len(indices))
	if err != nil {
		return nil, err
	}
	for _, idx := range indices {
		i := remap[idx]
		for _, e := range m.rows[idx] {
			if j, ok := remap[e.Col]; ok {
				if err := sub.Set(i, j, e.Weight); err != nil {
					return nil, err
				}
			}
		}
	}
	return sub, nil
}

// Copy returns a deep copy of the matrix.
func (m *AdjacencyMatrix) Copy() *AdjacencyMatrix {
	cp := &AdjacencyMatrix{n: m.n, rows: make([][]MatrixEntry, m.n)}
	for i, row := range m.rows {
		cp.rows[i] = make([]MatrixEntry, len(row))
		copy(cp.rows[i], row)
	}
	return cp
}

// Validate checks entry bounds and weight signs.
func (m *AdjacencyMatrix) Validate() error {
	if m.n <= 0 {
		return fmt.Errorf("matrix has no rows")
	}
	for i, row := range m.rows {
		for _, e := range row {
			if e.Col < 0 || e.Col >= m.n {
				return fmt.Errorf("invalid column %d in row %d", e.Col, i)
			}
			if e.Weight < 0 {
				return fmt.Errorf("negative weight %f at (%d, %d)", e.Weight, i, e.Col)
			}
		}
	}
	return nil
}
