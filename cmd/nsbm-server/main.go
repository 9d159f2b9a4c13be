package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/crespin/nsbm-clustering-service/pkg/api"
	"github.com/crespin/nsbm-clustering-service/pkg/config"
	"github.com/crespin/nsbm-clustering-service/pkg/engine"
	"github.com/crespin/nsbm-clustering-service/pkg/engine/greedy"
	"github.com/crespin/nsbm-clustering-service/pkg/service"
)

func main() {
	cfg := config.New()
	if path := os.Getenv("NSBM_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to load configuration file")
		}
	}
	log.Logger = cfg.CreateLogger()

	log.Info().
		Str("address", cfg.ServerAddress()).
		Int("max_workers", cfg.MaxWorkers()).
		Dur("job_ttl", cfg.JobTTL()).
		Msg("Starting NSBM clustering service")

	// Engine adapters register here; the greedy reference engine always
	// ships so the service works out of the box.
	registry := engine.NewRegistry()
	registry.Register(greedy.New())
	log.Info().Strs("engines", registry.List()).Msg("Engines registered")

	datasetService := service.NewDatasetService()
	jobService := service.NewJobService(datasetService, registry, cfg.MaxWorkers(), cfg.JobTTL(), cfg.CleanupInterval())
	handlers := api.NewHandlers(datasetService, jobService, registry)

	router := mux.NewRouter()
	api.SetupRoutes(router, handlers)
	router.Use(api.LoggingMiddleware)
	router.Use(api.RecoveryMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}).Handler(router)

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      corsHandler,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}

	go func() {
		log.Info().Str("address", cfg.ServerAddress()).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server shutdown complete")
}
