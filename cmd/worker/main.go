package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avpetrov/reportgen/internal/bootstrap"
	"github.com/avpetrov/reportgen/internal/config"
	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
	"github.com/avpetrov/reportgen/internal/observability/logging"
	"github.com/avpetrov/reportgen/internal/observability/metrics"
)

const (
	ingestTimeout = 10 * time.Minute
	embedTimeout  = 30 * time.Minute
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux(workerMetrics),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribePipelineRun(ctx, func(handlerCtx context.Context, job ports.PipelineJob) error {
		if !job.PublishedAt.IsZero() {
			workerMetrics.ObserveQueueLag("worker", time.Since(job.PublishedAt))
		}
		return runPipeline(handlerCtx, app, workerMetrics, logger, job.ProjectID)
	})
	if err != nil {
		logger.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}

func metricsMux(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// runPipeline runs ingest then embed for one queued project. A state
// conflict means another run already advanced the project; that is a clean
// skip, not a failure.
func runPipeline(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, logger *slog.Logger, projectID string) error {
	m.StartRun()
	defer m.FinishRun()

	ingestCtx, cancelIngest := context.WithTimeout(ctx, ingestTimeout)
	defer cancelIngest()

	start := time.Now()
	ingestResult, err := app.IngestUC.IngestProject(ingestCtx, projectID)
	m.ObserveStage("worker", "ingest", time.Since(start), err)
	if err != nil {
		if domain.IsKind(err, domain.ErrStateConflict) {
			logger.Info("ingest skipped", "project_id", projectID, "reason", err)
			return nil
		}
		logger.Error("ingest failed", "project_id", projectID, "error", err)
		return err
	}
	logger.Info("ingest finished",
		"project_id", projectID,
		"processed", ingestResult.ProcessedDocuments,
		"errors", ingestResult.ErrorDocuments,
		"chunks", ingestResult.TotalChunks,
	)

	embedCtx, cancelEmbed := context.WithTimeout(ctx, embedTimeout)
	defer cancelEmbed()

	start = time.Now()
	embedResult, err := app.EmbedUC.EmbedProject(embedCtx, projectID)
	m.ObserveStage("worker", "embed", time.Since(start), err)
	if err != nil {
		if domain.IsKind(err, domain.ErrStateConflict) {
			logger.Info("embed skipped", "project_id", projectID, "reason", err)
			return nil
		}
		logger.Error("embed failed", "project_id", projectID, "error", err)
		return err
	}
	logger.Info("embed finished",
		"project_id", projectID,
		"newly_embedded", embedResult.NewlyEmbedded,
		"already_embedded", embedResult.AlreadyEmbedded,
		"failed", embedResult.Failed,
	)
	return nil
}
