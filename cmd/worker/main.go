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

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/merchant-statements/internal/bootstrap"
	"github.com/kirillkom/merchant-statements/internal/config"
	"github.com/kirillkom/merchant-statements/internal/observability/logging"
	"github.com/kirillkom/merchant-statements/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:   logger,
		Recorder: workerMetrics,
		BreakerListener: func(operation string, from, to gobreaker.State) {
			workerMetrics.ObserveBreakerState(operation, from.String(), to.String())
		},
	})
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server error", "error", err)
		}
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeStatementSubmitted(ctx, func(handlerCtx context.Context, statementID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.ProcessTimeout)
		defer cancel()

		if rec, err := app.Repo.GetByID(processCtx, statementID); err == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(rec.CreatedAt))
		}

		start := time.Now()
		workerMetrics.StartStatement()
		completed, err := app.ProcessUC.ProcessByID(processCtx, statementID)
		workerMetrics.FinishStatement(serviceName, time.Since(start), err)
		if err != nil {
			return err
		}
		logger.Debug("statement handled", "statement_id", statementID, "completed", completed)
		return nil
	})
	if err != nil {
		logger.Error("worker subscribe error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("worker metrics shutdown error", "error", err)
	}
}
