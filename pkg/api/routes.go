package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes wires the REST endpoints onto the router.
func SetupRoutes(router *mux.Router, handlers *Handlers) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Dataset management
	datasets := api.PathPrefix("/datasets").Subrouter()
	datasets.HandleFunc("", handlers.ListDatasets).Methods("GET")
	datasets.HandleFunc("", handlers.CreateDataset).Methods("POST")
	datasets.HandleFunc("/{datasetId}", handlers.GetDataset).Methods("GET")
	datasets.HandleFunc("/{datasetId}", handlers.DeleteDataset).Methods("DELETE")

	// Clustering runs
	runs := datasets.PathPrefix("/{datasetId}/runs").Subrouter()
	runs.HandleFunc("", handlers.StartRun).Methods("POST")
	runs.HandleFunc("", handlers.ListRuns).Methods("GET")

	// Run output
	datasets.HandleFunc("/{datasetId}/labels/{key}", handlers.GetLabels).Methods("GET")
	datasets.HandleFunc("/{datasetId}/annotations/{key}", handlers.GetAnnotation).Methods("GET")

	// Job management
	jobs := api.PathPrefix("/jobs").Subrouter()
	jobs.HandleFunc("/{jobId}", handlers.GetJob).Methods("GET")
	jobs.HandleFunc("/{jobId}/cancel", handlers.CancelJob).Methods("POST")

	// Engine discovery and health
	api.HandleFunc("/engines", handlers.ListEngines).Methods("GET")
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
}
