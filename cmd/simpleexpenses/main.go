package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"simpleexpenses/internal/amqp"
	"simpleexpenses/internal/config"
	apphttp "simpleexpenses/internal/http"
	"simpleexpenses/internal/ledger"
	applog "simpleexpenses/internal/log"
	"simpleexpenses/internal/memstore"
	"simpleexpenses/internal/mileage"
	"simpleexpenses/internal/storage"
	"simpleexpenses/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var (
		expenseStore ledger.ExpenseStore
		mileageStore mileage.EntryStore
	)
	switch cfg.DataBackend {
	case "sqlite":
		store, err := storage.Open(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to open SQLite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer store.Close()
		expenseStore = store.Expenses()
		mileageStore = store.Mileage()
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		expenseStore = memstore.NewExpenses()
		mileageStore = memstore.NewMileage()
		logger.Info("Initialized memory backend")
	}

	estimator, err := mileage.GetEstimator(cfg.DistanceStrategy)
	if err != nil {
		logger.Error("Unknown distance strategy", "error", err, "strategy", cfg.DistanceStrategy)
		os.Exit(1)
	}

	ledgerEngine := ledger.New(expenseStore)
	mileageEngine := mileage.New(mileageStore, estimator)
	exporter := worker.NewExportWorker(expenseStore, cfg.ExportDir)

	var publisher apphttp.JobPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Export jobs will be queued", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("No AMQP URL configured, exports run synchronously")
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledgerEngine, mileageEngine, publisher, exporter)
	// Handlers pull this logger from the request context.
	srv.Handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(srv.Handler)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// A dedicated engine watches the store and logs summary changes; the
	// HTTP handlers keep their own engine state so the two never contend.
	g.Go(func() error {
		observer := ledger.New(expenseStore)
		for view := range observer.Observe(ctx) {
			logger.Debug("Ledger changed",
				"visible_count", view.VisibleCount,
				"visible_total_pence", view.VisibleTotal.Pence,
				"submitted", view.Summary.Submitted.Count,
				"approved", view.Summary.Approved.Count,
				"paid", view.Summary.Paid.Count)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		return srv.Close()
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
