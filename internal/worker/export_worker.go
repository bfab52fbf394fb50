// Package worker turns queued export jobs into CSV files on disk.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"simpleexpenses/internal/amqp"
	"simpleexpenses/internal/core"
	"simpleexpenses/internal/export"
	"simpleexpenses/internal/ledger"
)

// ExportWorker reads expenses from the store when a job arrives, so the file
// reflects the ledger at processing time rather than at enqueue time.
type ExportWorker struct {
	store     ledger.ExpenseStore
	exportDir string
	now       func() time.Time
}

func NewExportWorker(store ledger.ExpenseStore, exportDir string) *ExportWorker {
	return &ExportWorker{
		store:     store,
		exportDir: exportDir,
		now:       time.Now,
	}
}

// HandleExportJob processes a single export job from AMQP.
func (w *ExportWorker) HandleExportJob(ctx context.Context, msg *amqp.ExportJobMessage) error {
	slog.InfoContext(ctx, "Processing export job",
		"scope", msg.Scope,
		"requested_at", msg.RequestedAt)

	path, count, err := w.Export(ctx, msg.Scope)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Export written",
		"scope", msg.Scope,
		"path", path,
		"rows", count)
	return nil
}

// Export snapshots the requested scope to a timestamped CSV file and returns
// its path and row count. It is also called directly by the API when no
// broker is configured.
func (w *ExportWorker) Export(ctx context.Context, scope string) (string, int, error) {
	expenses, err := w.snapshot(ctx, scope)
	if err != nil {
		return "", 0, fmt.Errorf("read expenses for export: %w", err)
	}

	if err := os.MkdirAll(w.exportDir, 0755); err != nil {
		return "", 0, fmt.Errorf("create export directory: %w", err)
	}

	name := fmt.Sprintf("expenses-%s-%s.csv", scope, w.now().Format("20060102-150405"))
	path := filepath.Join(w.exportDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create export file: %w", err)
	}

	if err := export.WriteCSV(f, expenses); err != nil {
		f.Close()
		os.Remove(path)
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("close export file: %w", err)
	}

	return path, len(expenses), nil
}

func (w *ExportWorker) snapshot(ctx context.Context, scope string) ([]core.Expense, error) {
	switch scope {
	case amqp.ScopePaid:
		return w.store.ListByStatus(ctx, core.StatusPaid)
	case amqp.ScopeAll:
		return w.store.ListFiltered(ctx, core.Filter{})
	default:
		return nil, fmt.Errorf("unknown export scope %q", scope)
	}
}
