package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/gradecast/predictor-service/internal/artifacts"
	"github.com/gradecast/predictor-service/internal/config"
	"github.com/gradecast/predictor-service/internal/metrics"
	"github.com/gradecast/predictor-service/internal/repository"
	"github.com/gradecast/predictor-service/internal/services"
	"github.com/gradecast/predictor-service/internal/store"
	"github.com/gradecast/predictor-service/pkg/server"
)

func main() {
	var envFile = flag.String("env", "", "Optional .env file to load")
	flag.Parse()

	// Bootstrap logger until LOG_LEVEL/LOG_FORMAT are known
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())

	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.Event("info", "startup", "Server starting", map[string]interface{}{
		"environment": cfg.Environment,
		"model_name":  cfg.ModelName,
		"http_addr":   cfg.HTTPAddr,
		"db_path":     cfg.DBPath,
	})

	repo := repository.NewSQLiteRepository(db)
	predictionService := services.NewPredictionService(repo, metrics.New(), cfg.MaxBatchSize)

	db.Event("info", "artifacts.loading", "Artifact loading started", map[string]interface{}{
		"artifact_dir": cfg.ArtifactDir,
	})

	bundle, err := artifacts.Load(cfg.ArtifactDir)
	if err != nil {
		meta := map[string]interface{}{
			"artifact_dir": cfg.ArtifactDir,
			"error":        err.Error(),
		}
		var loadErr *artifacts.LoadError
		if errors.As(err, &loadErr) {
			meta["artifact"] = loadErr.Artifact
		}
		db.Event("error", "artifacts.failed", "Artifact loading failed", meta)
		slog.Error("Failed to load model artifacts", "error", err)
		db.Close()
		os.Exit(1)
	}
	if err := predictionService.SetReady(bundle); err != nil {
		slog.Error("Failed to initialize prediction service", "error", err)
		db.Close()
		os.Exit(1)
	}

	db.Event("info", "artifacts.loaded", "Artifacts loaded successfully", map[string]interface{}{
		"artifact_dir": cfg.ArtifactDir,
		"model_type":   bundle.Regressor().Kind(),
		"features":     len(bundle.FeatureColumns()),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if cfg.NatsEnabled {
		startNATS(ctx, &wg, cfg, db, predictionService)
	}

	httpServer := server.NewServer(cfg, predictionService)

	db.Event("info", "server.ready", "Server ready to accept requests", map[string]interface{}{
		"http_addr":    cfg.HTTPAddr,
		"api_prefix":   cfg.APIPrefix,
		"nats_enabled": cfg.NatsEnabled,
	})

	if err := httpServer.Start(ctx); err != nil {
		db.Event("error", "http.failed", "HTTP server failed", map[string]interface{}{
			"error": err.Error(),
		})
		slog.Error("HTTP server failed", "error", err)
		stop()
	}

	wg.Wait()
	db.Event("info", "shutdown", "Server stopped", nil)
	slog.Info("Server stopped")
}

// startNATS runs the JetStream workers and the health responder. Failures
// are recorded but do not stop the HTTP server.
func startNATS(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, db *store.DB, predictionService *services.PredictionService) {
	natsService, err := services.NewNATSService(cfg, predictionService)
	if err != nil {
		db.Event("error", "nats.failed", "NATS service initialization failed", map[string]interface{}{
			"nats_url": cfg.NatsURL,
			"error":    err.Error(),
		})
		slog.Error("Failed to create NATS service", "error", err)
		return
	}

	healthService := services.NewHealthService(natsService.GetConnection(), cfg, predictionService, natsService.GetMonitoringService())
	if err := healthService.Start(ctx); err != nil {
		db.Event("error", "health.failed", "Health service failed", map[string]interface{}{
			"error": err.Error(),
		})
		slog.Error("Health service failed", "error", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := natsService.Start(ctx); err != nil {
			db.Event("error", "nats.failed", "NATS service failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("NATS service failed", "error", err)
			natsService.Close()
		}
	}()
}
