// Package service holds the dataset store and the background clustering job
// manager behind the HTTP layer.
package service

import (
	"time"

	"github.com/crespin/nsbm-clustering-service/pkg/nsbm"
)

// DatasetRecord is the stored view of an uploaded dataset.
type DatasetRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NumNodes  int       `json:"numNodes"`
	NumEdges  int       `json:"numEdges"`
	ObsKeys   []string  `json:"obsKeys"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Edge is one undirected weighted edge of an uploaded graph.
type Edge struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Weight float64 `json:"weight,omitempty"`
}

// DatasetSpec is the upload payload: node names, the similarity edge list,
// and optional categorical annotation columns.
type DatasetSpec struct {
	Name  string              `json:"name"`
	Nodes []string            `json:"nodes"`
	Edges []Edge              `json:"edges"`
	Obs   map[string][]string `json:"obs,omitempty"`
}

// Job represents a clustering job.
type Job struct {
	ID          string      `json:"id"`
	DatasetID   string      `json:"datasetId"`
	Engine      string      `json:"engine"`
	Fast        bool        `json:"fast"`
	Status      JobStatus   `json:"status"`
	Progress    JobProgress `json:"progress"`
	Result      *JobResult  `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

type JobProgress struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

// JobResult summarizes a finished run; the label columns live on the dataset.
type JobResult struct {
	Key              string      `json:"key"`
	NumLevels        int         `json:"numLevels"`
	Modularity       []float64   `json:"modularity"`
	Params           nsbm.Params `json:"params"`
	ProcessingTimeMS int64       `json:"processingTimeMS"`
}

// RunRequest starts a clustering job on a dataset.
type RunRequest struct {
	Engine string    `json:"engine"`
	Fast   bool      `json:"fast,omitempty"`
	Params RunParams `json:"params,omitempty"`
}

// RunParams carries optional overrides of the run defaults; nil fields keep
// the default value.
type RunParams struct {
	SweepIterations    *int     `json:"sweepIterations,omitempty"`
	MaxIterations      *int     `json:"maxIterations,omitempty"`
	Epsilon            *float64 `json:"epsilon,omitempty"`
	Equilibrate        *bool    `json:"equilibrate,omitempty"`
	Wait               *int     `json:"wait,omitempty"`
	Breaks             *int     `json:"breaks,omitempty"`
	CollectMarginals   *bool    `json:"collectMarginals,omitempty"`
	CollectIterations  *int     `json:"collectIterations,omitempty"`
	HierarchyLength    *int     `json:"hierarchyLength,omitempty"`
	DegreeCorrected    *bool    `json:"degreeCorrected,omitempty"`
	Multiflip          *bool    `json:"multiflip,omitempty"`
	RandomSeed         *int64   `json:"randomSeed,omitempty"`
	KeyAdded           *string  `json:"keyAdded,omitempty"`
	Directed           *bool    `json:"directed,omitempty"`
	UseWeights         *bool    `json:"useWeights,omitempty"`
	Prune              *bool    `json:"prune,omitempty"`
	ReturnLow          *bool    `json:"returnLow,omitempty"`
	RestrictKey        *string  `json:"restrictKey,omitempty"`
	RestrictCategories []string `json:"restrictCategories,omitempty"`
}

// apply overlays the overrides on a run configuration.
func (p RunParams) apply(cfg *nsbm.Config) {
	if p.SweepIterations != nil {
		cfg.SweepIterations = *p.SweepIterations
	}
	if p.MaxIterations != nil {
		cfg.MaxIterations = *p.MaxIterations
	}
	if p.Epsilon != nil {
		cfg.Epsilon = *p.Epsilon
	}
	if p.Equilibrate != nil {
		cfg.Equilibrate = *p.Equilibrate
	}
	if p.Wait != nil {
		cfg.Wait = *p.Wait
	}
	if p.Breaks != nil {
		cfg.Breaks = *p.Breaks
	}
	if p.CollectMarginals != nil {
		cfg.CollectMarginals = *p.CollectMarginals
	}
	if p.CollectIterations != nil {
		cfg.CollectIterations = *p.CollectIterations
	}
	if p.HierarchyLength != nil {
		cfg.HierarchyLength = *p.HierarchyLength
	}
	if p.DegreeCorrected != nil {
		cfg.DegreeCorrected = *p.DegreeCorrected
	}
	if p.Multiflip != nil {
		cfg.Multiflip = *p.Multiflip
	}
	if p.RandomSeed != nil {
		cfg.RandomSeed = *p.RandomSeed
	}
	if p.KeyAdded != nil {
		cfg.KeyAdded = *p.KeyAdded
	}
	if p.Directed != nil {
		cfg.Directed = *p.Directed
	}
	if p.UseWeights != nil {
		cfg.UseWeights = *p.UseWeights
	}
	if p.Prune != nil {
		cfg.Prune = *p.Prune
	}
	if p.ReturnLow != nil {
		cfg.ReturnLow = *p.ReturnLow
	}
	if p.RestrictKey != nil {
		cfg.RestrictKey = *p.RestrictKey
		cfg.RestrictCategories = p.RestrictCategories
	}
}
