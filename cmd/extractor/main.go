// The extractor worker hosts the HL7 log ingestion pipeline: it polls the
// ingest task queue and executes the split, stage, and transform work for
// every ingest job launched against this namespace.
package main

import (
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/washu-tag/scout-kate/internal/config"
	"github.com/washu-tag/scout-kate/internal/ingest"
	"github.com/washu-tag/scout-kate/internal/observability"
	"github.com/washu-tag/scout-kate/internal/reports"
	"github.com/washu-tag/scout-kate/internal/status"
	"github.com/washu-tag/scout-kate/internal/storage"
)

func main() {
	cfg := loadConfiguration()
	logger := observability.NewLogger(observability.ParseLevel(cfg.LogLevel))
	logger.Info("Starting extractor worker",
		"service", cfg.ServiceName, "environment", cfg.Environment, "taskQueue", cfg.Temporal.TaskQueue)

	metrics := startMetrics(cfg, logger)

	db := openStatusDatabase(cfg, logger)
	defer db.Close()

	objects := openObjectStore(cfg, logger)

	temporal := dialTemporal(cfg, logger)
	defer temporal.Close()

	activities := &ingest.Activities{
		Status:  status.NewPostgresStore(db, logger),
		Objects: objects,
		Reports: reports.NewWriter(db),
		Metrics: metrics,
	}

	w := worker.New(temporal, cfg.Temporal.TaskQueue, worker.Options{})
	ingest.Register(w, activities)

	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Worker exited: %v", err)
	}
}

func loadConfiguration() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

// startMetrics registers the pipeline collectors and serves Prometheus
// exposition in the background.
func startMetrics(cfg *config.Config, logger observability.Logger) *observability.Metrics {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(cfg.ServiceName, registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		logger.Info("Serving metrics", "addr", cfg.Metrics.Addr)
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			logger.Error("Metrics server stopped", "error", err)
		}
	}()
	return metrics
}

func openStatusDatabase(cfg *config.Config, logger observability.Logger) *sqlx.DB {
	db, err := sqlx.Connect("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to status database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	if err := status.Migrate(db.DB); err != nil {
		log.Fatalf("Failed to migrate status database: %v", err)
	}
	logger.Info("Status database ready")
	return db
}

func openObjectStore(cfg *config.Config, logger observability.Logger) storage.ObjectStore {
	store, err := storage.NewS3Store(&cfg.S3, logger)
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}
	return store
}

func dialTemporal(cfg *config.Config, logger observability.Logger) sdkclient.Client {
	c, err := sdkclient.Dial(sdkclient.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Temporal: %v", err)
	}
	return c
}
