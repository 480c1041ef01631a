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

	httpadapter "github.com/kirillkom/resume-ranker/internal/adapters/http"
	"github.com/kirillkom/resume-ranker/internal/bootstrap"
	"github.com/kirillkom/resume-ranker/internal/config"
	"github.com/kirillkom/resume-ranker/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Without an external broker the API owns the worker pool.
	workersDone := make(chan struct{})
	if app.InProcessQueue {
		go func() {
			defer close(workersDone)
			if err := app.RunWorkers(ctx); err != nil {
				logger.Error("worker_pool_failed", "error", err)
			}
		}()
		go serveWorkerMetrics(ctx, logger, cfg.WorkerMetricsPort, app.WorkerMetrics.Handler())
	} else {
		close(workersDone)
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Dependencies{
		Submitter: app.SubmitUC,
		Resumes:   app.SubmitUC,
		Ranker:    app.MatchUC,
		Jobs:      app.JobUC,
		Readiness: app.ReadinessUC,
		Exporter:  app.Exporter,
		Metrics:   app.HTTPMetrics,
	}).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	<-workersDone
	logger.Info("api_stopped")
}

func serveWorkerMetrics(ctx context.Context, logger *slog.Logger, port string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	server := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("worker_metrics_server_failed", "error", err)
	}
}
