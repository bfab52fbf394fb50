package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"simpleexpenses/internal/amqp"
	"simpleexpenses/internal/config"
	applog "simpleexpenses/internal/log"
	"simpleexpenses/internal/storage"
	"simpleexpenses/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting export worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// The worker shares the ledger with the API through SQLite; an in-memory
	// backend has nothing for a separate process to read.
	if cfg.DataBackend != "sqlite" {
		logger.Error("Export worker requires DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("Export worker requires AMQP_URL")
		os.Exit(1)
	}

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	exportWorker := worker.NewExportWorker(store.Expenses(), cfg.ExportDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Consuming export jobs",
		"queue", cfg.AMQPQueue,
		"export_dir", cfg.ExportDir)

	err = client.ConsumeExportJobs(ctx, func(msg *amqp.ExportJobMessage) error {
		return exportWorker.HandleExportJob(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Export job consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Export worker stopped gracefully")
}
