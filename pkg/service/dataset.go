package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
)

// DatasetService stores uploaded datasets in memory, keyed by id.
type DatasetService struct {
	datasets map[string]*storedDataset
	mutex    sync.RWMutex
}

type storedDataset struct {
	record DatasetRecord
	data   *dataset.Dataset
}

// NewDatasetService creates a new dataset service.
func NewDatasetService() *DatasetService {
	return &DatasetService{
		datasets: make(map[string]*storedDataset),
	}
}

// Create builds an annotated dataset from an uploaded spec: node names, a
// symmetric adjacency from the edge list, and any categorical obs columns.
func (s *DatasetService) Create(spec DatasetSpec) (*DatasetRecord, error) {
	if len(spec.Nodes) == 0 {
		return nil, fmt.Errorf("dataset has no nodes")
	}
	if spec.Name == "" {
		spec.Name = "Unnamed Dataset"
	}

	ds := dataset.New(spec.Nodes)
	n := len(spec.Nodes)
	adj, err := dataset.NewAdjacencyMatrix(n)
	if err != nil {
		return nil, err
	}
	for _, e := range spec.Edges {
		if e.Source < 0 || e.Source >= n || e.Target < 0 || e.Target >= n {
			return nil, fmt.Errorf("edge (%d, %d) out of range for %d nodes", e.Source, e.Target, n)
		}
		w := e.Weight
		if w == 0 {
			w = 1
		}
		if err := adj.Set(e.Source, e.Target, w); err != nil {
			return nil, err
		}
		if e.Source != e.Target {
			if err := adj.Set(e.Target, e.Source, w); err != nil {
				return nil, err
			}
		}
	}
	if err := ds.SetAdjacency(adj); err != nil {
		return nil, err
	}
	for key, values := range spec.Obs {
		if len(values) != n {
			return nil, fmt.Errorf("obs column %q has %d values, dataset has %d nodes", key, len(values), n)
		}
		if err := ds.SetObs(key, dataset.CategoricalFromValues(values)); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	stored := &storedDataset{
		record: DatasetRecord{
			ID:        uuid.New().String(),
			Name:      spec.Name,
			NumNodes:  n,
			NumEdges:  len(spec.Edges),
			ObsKeys:   ds.ObsKeys(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		data: ds,
	}

	s.mutex.Lock()
	s.datasets[stored.record.ID] = stored
	s.mutex.Unlock()

	log.Info().
		Str("dataset_id", stored.record.ID).
		Str("name", spec.Name).
		Int("nodes", n).
		Int("edges", len(spec.Edges)).
		Msg("Dataset created")

	return &stored.record, nil
}

// Get retrieves a dataset record by id.
func (s *DatasetService) Get(datasetID string) (*DatasetRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stored, exists := s.datasets[datasetID]
	if !exists {
		return nil, fmt.Errorf("dataset not found: %s", datasetID)
	}
	rec := stored.record
	return &rec, nil
}

// Data returns the dataset container behind a record.
func (s *DatasetService) Data(datasetID string) (*dataset.Dataset, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stored, exists := s.datasets[datasetID]
	if !exists {
		return nil, fmt.Errorf("dataset not found: %s", datasetID)
	}
	return stored.data, nil
}

// Swap atomically replaces the stored container, used by the job service to
// publish an annotated copy once a run succeeds.
func (s *DatasetService) Swap(datasetID string, ds *dataset.Dataset) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored, exists := s.datasets[datasetID]
	if !exists {
		return fmt.Errorf("dataset not found: %s", datasetID)
	}
	stored.data = ds
	stored.record.ObsKeys = ds.ObsKeys()
	stored.record.UpdatedAt = time.Now()
	return nil
}

// List returns all dataset records.
func (s *DatasetService) List() []*DatasetRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	records := make([]*DatasetRecord, 0, len(s.datasets))
	for _, stored := range s.datasets {
		rec := stored.record
		records = append(records, &rec)
	}
	return records
}

// Delete removes a dataset.
func (s *DatasetService) Delete(datasetID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.datasets[datasetID]; !exists {
		return fmt.Errorf("dataset not found: %s", datasetID)
	}
	delete(s.datasets, datasetID)

	log.Info().
		Str("dataset_id", datasetID).
		Msg("Dataset deleted")
	return nil
}
