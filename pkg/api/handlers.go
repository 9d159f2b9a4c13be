package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/crespin/nsbm-clustering-service/pkg/engine"
	"github.com/crespin/nsbm-clustering-service/pkg/nsbm"
	"github.com/crespin/nsbm-clustering-service/pkg/service"
)

// Handlers contains the HTTP request handlers.
type Handlers struct {
	datasetService *service.DatasetService
	jobService     *service.JobService
	registry       *engine.Registry
}

// NewHandlers creates new API handlers.
func NewHandlers(datasetService *service.DatasetService, jobService *service.JobService, registry *engine.Registry) *Handlers {
	return &Handlers{
		datasetService: datasetService,
		jobService:     jobService,
		registry:       registry,
	}
}

// CreateDataset handles dataset upload.
func (h *Handlers) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var spec service.DatasetSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		log.Error().Err(err).Msg("Invalid dataset payload")
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record, err := h.datasetService.Create(spec)
	if err != nil {
		log.Error().Err(err).Msg("Dataset creation failed")
		WriteErrorResponse(w, http.StatusBadRequest, "Dataset creation failed", err)
		return
	}
	WriteSuccessResponse(w, "Dataset created", record)
}

// ListDatasets lists all datasets.
func (h *Handlers) ListDatasets(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, "Datasets retrieved", h.datasetService.List())
}

// GetDataset retrieves a dataset record.
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	record, err := h.datasetService.Get(datasetID)
	if err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "Dataset not found", err)
		return
	}
	WriteSuccessResponse(w, "Dataset retrieved", record)
}

// DeleteDataset deletes a dataset.
func (h *Handlers) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	if err := h.datasetService.Delete(datasetID); err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "Dataset not found", err)
		return
	}
	WriteSuccessResponse(w, "Dataset deleted", nil)
}

// StartRun submits a clustering job for a dataset.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	var req service.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, err := h.datasetService.Get(datasetID); err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "Dataset not found", err)
		return
	}

	job, err := h.jobService.Submit(datasetID, req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, engine.ErrEngineUnavailable) {
			log.Error().
				Str("engine", req.Engine).
				Err(err).
				Msg("Requested engine unavailable")
		}
		WriteErrorResponse(w, status, "Failed to start clustering", err)
		return
	}

	log.Info().
		Str("job_id", job.ID).
		Str("dataset_id", datasetID).
		Str("engine", req.Engine).
		Msg("Clustering job started")
	WriteSuccessResponse(w, "Clustering job started", job)
}

// ListRuns lists the clustering jobs of a dataset.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	if _, err := h.datasetService.Get(datasetID); err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "Dataset not found", err)
		return
	}
	WriteSuccessResponse(w, "Jobs retrieved", h.jobService.List(datasetID))
}

// GetJob returns job status and result summary.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.jobService.Get(jobID)
	if err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	}
	WriteSuccessResponse(w, "Job retrieved", job)
}

// CancelJob cancels a job.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	if err := h.jobService.Cancel(jobID); err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	}
	WriteSuccessResponse(w, "Job cancelled", nil)
}

// LabelColumn is one hierarchy-level label column of an annotated dataset.
type LabelColumn struct {
	Key        string   `json:"key"`
	Categories []string `json:"categories"`
	Values     []string `json:"values"`
}

// GetLabels returns the per-level label columns written under a run key.
func (h *Handlers) GetLabels(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	datasetID := vars["datasetId"]
	key := vars["key"]

	ds, err := h.datasetService.Data(datasetID)
	if err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "Dataset not found", err)
		return
	}

	prefix := key + "_level_"
	var columns []LabelColumn
	for _, obsKey := range ds.ObsKeys() {
		if !strings.HasPrefix(obsKey, prefix) {
			continue
		}
		col, _ := ds.Obs(obsKey)
		columns = append(columns, LabelColumn{
			Key:        obsKey,
			Categories: col.Categories(),
			Values:     col.Values(),
		})
	}
	if len(columns) == 0 {
		WriteErrorResponse(w, http.StatusNotFound, "No labels under key "+key, nil)
		return
	}
	WriteSuccessResponse(w, "Labels retrieved", columns)
}

// AnnotationView is the JSON-safe slice of a run annotation.
type AnnotationView struct {
	Params          nsbm.Params `json:"params"`
	Stats           nsbm.Stats  `json:"stats"`
	GroupMarginals  [][]float64 `json:"groupMarginals,omitempty"`
	HasMarginals    bool        `json:"hasMarginals"`
	RestrictIndices []int       `json:"restrictIndices,omitempty"`
}

// GetAnnotation returns the run record stored under a key.
func (h *Handlers) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	datasetID := vars["datasetId"]
	key := vars["key"]

	ds, err := h.datasetService.Data(datasetID)
	if err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "Dataset not found", err)
		return
	}
	ann, ok := ds.Uns[key].(*nsbm.Annotation)
	if !ok {
		WriteErrorResponse(w, http.StatusNotFound, "No annotation under key "+key, nil)
		return
	}
	WriteSuccessResponse(w, "Annotation retrieved", AnnotationView{
		Params:          ann.Params,
		Stats:           ann.Stats,
		GroupMarginals:  ann.GroupMarginals,
		HasMarginals:    ann.HasMarginals(),
		RestrictIndices: ann.RestrictIndices,
	})
}

// ListEngines lists the registered inference engines.
func (h *Handlers) ListEngines(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, "Engines retrieved", h.registry.List())
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, "ok", map[string]interface{}{
		"engines": h.registry.List(),
	})
}
