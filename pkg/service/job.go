package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crespin/nsbm-clustering-service/pkg/engine"
	"github.com/crespin/nsbm-clustering-service/pkg/nsbm"
)

// JobService handles background clustering jobs. A run always works on a
// copy of the stored dataset; the annotated copy is swapped in only when the
// run succeeds, so readers never observe a half-written dataset.
type JobService struct {
	jobs            map[string]*Job
	workers         chan struct{}
	registry        *engine.Registry
	datasets        *DatasetService
	mutex           sync.RWMutex
	jobTTL          time.Duration
	cleanupInterval time.Duration
}

// NewJobService creates a job service with the given worker and retention
// limits and starts its cleanup loop.
func NewJobService(datasets *DatasetService, registry *engine.Registry, maxWorkers int, jobTTL, cleanupInterval time.Duration) *JobService {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	s := &JobService{
		jobs:            make(map[string]*Job),
		workers:         make(chan struct{}, maxWorkers),
		registry:        registry,
		datasets:        datasets,
		jobTTL:          jobTTL,
		cleanupInterval: cleanupInterval,
	}
	go s.cleanupLoop()
	return s
}

// Submit validates and queues a clustering run. The engine lookup happens
// here so an unavailable engine fails the request, not the background job.
// One active job per dataset; the pipeline itself is single-threaded.
func (s *JobService) Submit(datasetID string, req RunRequest) (*Job, error) {
	if _, err := s.registry.Get(req.Engine); err != nil {
		return nil, err
	}
	if _, err := s.datasets.Get(datasetID); err != nil {
		return nil, err
	}

	cfg := runConfig(req)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, job := range s.jobs {
		if job.DatasetID == datasetID && (job.Status == JobStatusQueued || job.Status == JobStatusRunning) {
			return nil, fmt.Errorf("dataset %s already has an active job: %s", datasetID, job.ID)
		}
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.New().String(),
		DatasetID: datasetID,
		Engine:    req.Engine,
		Fast:      req.Fast,
		Status:    JobStatusQueued,
		Progress:  JobProgress{Message: "Queued"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job

	log.Info().
		Str("job_id", job.ID).
		Str("dataset_id", datasetID).
		Str("engine", req.Engine).
		Bool("fast", req.Fast).
		Msg("Job submitted")

	go s.processJob(job.ID, req)

	return job, nil
}

// Get retrieves a job snapshot by id.
func (s *JobService) Get(jobID string) (*Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	snapshot := *job
	return &snapshot, nil
}

// List returns all jobs for a dataset.
func (s *JobService) List(datasetID string) []*Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var jobs []*Job
	for _, job := range s.jobs {
		if job.DatasetID == datasetID {
			snapshot := *job
			jobs = append(jobs, &snapshot)
		}
	}
	return jobs
}

// Cancel marks a queued job as cancelled. A job that already entered the
// inference loop runs to completion; its result is discarded.
func (s *JobService) Cancel(jobID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if job.Status == JobStatusQueued || job.Status == JobStatusRunning {
		job.Status = JobStatusCancelled
		job.Progress.Message = "Cancelled"
		now := time.Now()
		job.CompletedAt = &now
		job.UpdatedAt = now

		log.Info().Str("job_id", jobID).Msg("Job cancelled")
	}
	return nil
}

func runConfig(req RunRequest) nsbm.Config {
	cfg := nsbm.DefaultConfig()
	req.Params.apply(&cfg)
	// Runs annotate a copy; the stored dataset is replaced on success only.
	cfg.Copy = true
	return cfg
}

func (s *JobService) processJob(jobID string, req RunRequest) {
	s.workers <- struct{}{}
	defer func() { <-s.workers }()

	s.mutex.RLock()
	job, exists := s.jobs[jobID]
	datasetID := ""
	if exists {
		datasetID = job.DatasetID
	}
	s.mutex.RUnlock()
	if !exists {
		log.Error().Str("job_id", jobID).Msg("Job not found during processing")
		return
	}
	if s.status(jobID) == JobStatusCancelled {
		return
	}

	startTime := time.Now()
	s.markRunning(jobID, startTime)

	log.Info().
		Str("job_id", jobID).
		Str("dataset_id", datasetID).
		Str("engine", req.Engine).
		Msg("Job processing started")

	eng, err := s.registry.Get(req.Engine)
	if err != nil {
		s.failJob(jobID, err)
		return
	}
	ds, err := s.datasets.Data(datasetID)
	if err != nil {
		s.failJob(jobID, err)
		return
	}

	cfg := runConfig(req)
	cfg.Logger = log.With().Str("job_id", jobID).Logger()

	s.updateProgress(jobID, 10, "Running inference")
	var annotated = ds
	if req.Fast {
		annotated, err = nsbm.FastModel(ds, eng, cfg)
	} else {
		annotated, err = nsbm.NestedModel(ds, eng, cfg)
	}
	if err != nil {
		s.failJob(jobID, fmt.Errorf("clustering failed: %w", err))
		return
	}

	if s.status(jobID) == JobStatusCancelled {
		log.Info().Str("job_id", jobID).Msg("Job cancelled, result discarded")
		return
	}

	s.updateProgress(jobID, 90, "Publishing results")
	if err := s.datasets.Swap(datasetID, annotated); err != nil {
		s.failJob(jobID, err)
		return
	}
	s.completeJob(jobID, annotated.Uns[cfg.KeyAdded].(*nsbm.Annotation), cfg, time.Since(startTime))
}

func (s *JobService) status(jobID string) JobStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if job, exists := s.jobs[jobID]; exists {
		return job.Status
	}
	return ""
}

func (s *JobService) markRunning(jobID string, startTime time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status == JobStatusCancelled {
		return
	}
	job.Status = JobStatusRunning
	job.Progress = JobProgress{Message: "Starting"}
	job.StartedAt = &startTime
	job.UpdatedAt = time.Now()
}

func (s *JobService) updateProgress(jobID string, percentage int, message string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status != JobStatusRunning {
		return
	}
	job.Progress = JobProgress{Percentage: percentage, Message: message}
	job.UpdatedAt = time.Now()

	log.Debug().
		Str("job_id", jobID).
		Int("percentage", percentage).
		Str("message", message).
		Msg("Job status updated")
}

func (s *JobService) completeJob(jobID string, ann *nsbm.Annotation, cfg nsbm.Config, elapsed time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status != JobStatusRunning {
		return
	}

	result := &JobResult{
		Key:              cfg.KeyAdded,
		NumLevels:        len(ann.Stats.Modularity),
		Modularity:       ann.Stats.Modularity,
		Params:           ann.Params,
		ProcessingTimeMS: elapsed.Milliseconds(),
	}

	job.Status = JobStatusCompleted
	job.Progress = JobProgress{Percentage: 100, Message: "Complete"}
	job.Result = result
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now

	log.Info().
		Str("job_id", jobID).
		Int("levels", result.NumLevels).
		Int64("processing_time_ms", result.ProcessingTimeMS).
		Msg("Job completed successfully")
}

func (s *JobService) failJob(jobID string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status == JobStatusCancelled {
		return
	}
	job.Status = JobStatusFailed
	job.Error = err.Error()
	job.Progress.Message = "Failed"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now

	log.Error().
		Str("job_id", jobID).
		Err(err).
		Msg("Job failed")
}

func (s *JobService) cleanupLoop() {
	if s.cleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

func (s *JobService) cleanup() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := time.Now().Add(-s.jobTTL)
	cleaned := 0
	for jobID, job := range s.jobs {
		if job.UpdatedAt.Before(cutoff) && job.Status != JobStatusQueued && job.Status != JobStatusRunning {
			delete(s.jobs, jobID)
			cleaned++
		}
	}
	if cleaned > 0 {
		log.Info().
			Int("cleaned_jobs", cleaned).
			Msg("Job cleanup completed")
	}
}
