// Package dataset holds the annotated dataset container clustering runs read
// from and write back into: node names, ordered categorical observation
// columns, the neighborhood adjacency matrix, and unstructured annotations.
package dataset

import "fmt"

// Dataset is a caller-owned container of per-node annotations.
type Dataset struct {
	names    []string
	obs      map[string]*Categorical
	obsOrder []string
	adj      *AdjacencyMatrix

	// Uns carries unstructured per-run annotations keyed by the output key of
	// the run that produced them. Values are typed records owned by their
	// producers; Copy shares them.
	Uns map[string]interface{}
}

// New creates a dataset over the given node names.
func New(names []string) *Dataset {
	own := make([]string, len(names))
	copy(own, names)
	return &Dataset{
		names: own,
		obs:   make(map[string]*Categorical),
		Uns:   make(map[string]interface{}),
	}
}

// NumNodes returns the number of nodes.
func (d *Dataset) NumNodes() int { return len(d.names) }

// Names returns a copy of the node names.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// SetObs attaches a categorical column under the given key, replacing any
// existing column with that key.
func (d *Dataset) SetObs(key string, col *Categorical) error {
	if col.Len() != len(d.names) {
		return fmt.Errorf("column %q has %d values, dataset has %d nodes", key, col.Len(), len(d.names))
	}
	if _, exists := d.obs[key]; !exists {
		d.obsOrder = append(d.obsOrder, key)
	}
	d.obs[key] = col
	return nil
}

// Obs returns the column stored under key.
func (d *Dataset) Obs(key string) (*Categorical, bool) {
	col, ok := d.obs[key]
	return col, ok
}

// ObsKeys returns the column keys in insertion order.
func (d *Dataset) ObsKeys() []string {
	out := make([]string, len(d.obsOrder))
	copy(out, d.obsOrder)
	return out
}

// DropObs removes the column stored under key, if present.
func (d *Dataset) DropObs(key string) {
	if _, ok := d.obs[key]; !ok {
		return
	}
	delete(d.obs, key)
	for i, k := range d.obsOrder {
		if k == key {
			d.obsOrder = append(d.obsOrder[:i], d.obsOrder[i+1:]...)
			break
		}
	}
}

// DropObsPrefix removes every column whose key starts with prefix and
// returns how many were removed.
func (d *Dataset) DropObsPrefix(prefix string) int {
	var keep []string
	removed := 0
	for _, k := range d.obsOrder {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(d.obs, k)
			removed++
			continue
		}
		keep = append(keep, k)
	}
	d.obsOrder = keep
	return removed
}

// SetAdjacency attaches the neighborhood adjacency matrix.
func (d *Dataset) SetAdjacency(m *AdjacencyMatrix) error {
	if m != nil && m.N() != len(d.names) {
		return fmt.Errorf("adjacency is %dx%d, dataset has %d nodes", m.N(), m.N(), len(d.names))
	}
	d.adj = m
	return nil
}

// Adjacency returns the neighborhood adjacency matrix, or nil if none was
// computed.
func (d *Dataset) Adjacency() *AdjacencyMatrix { return d.adj }

// Copy returns a deep copy of the dataset. Uns values are shared, since they
// are immutable once attached.
func (d *Dataset) Copy() *Dataset {
	cp := New(d.names)
	for _, k := range d.obsOrder {
		cp.obsOrder = append(cp.obsOrder, k)
		cp.obs[k] = d.obs[k].Copy()
	}
	if d.adj != nil {
		cp.adj = d.adj.Copy()
	}
	for k, v := range d.Uns {
		cp.Uns[k] = v
	}
	return cp
}
