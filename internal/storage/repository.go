// Package storage is the SQLite persistence layer. A Store owns the
// database handle and hands out the per-domain repositories that implement
// the engine store ports.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"simpleexpenses/internal/core"
	"simpleexpenses/internal/feed"

	_ "modernc.org/sqlite"
)

type Store struct {
	db       *sql.DB
	expenses *ExpenseRepository
	mileage  *MileageRepository
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:       db,
		expenses: &ExpenseRepository{db: db, changes: feed.New[struct{}]()},
		mileage:  &MileageRepository{db: db},
	}, nil
}

func (s *Store) Expenses() *ExpenseRepository { return s.expenses }
func (s *Store) Mileage() *MileageRepository  { return s.mileage }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ExpenseRepository implements ledger.ExpenseStore on SQLite.
type ExpenseRepository struct {
	db      *sql.DB
	changes *feed.Feed[struct{}]
}

const expenseColumns = `id, title, amount_pence, timestamp_ms, status, category,
	merchant, notes, reimbursable, payment_method, has_receipt, receipt_uri`

func (r *ExpenseRepository) Changes() *feed.Feed[struct{}] {
	return r.changes
}

func (r *ExpenseRepository) Insert(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (title, amount_pence, timestamp_ms, status, category,
			merchant, notes, reimbursable, payment_method, has_receipt, receipt_uri)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Amount.Pence, e.Timestamp, string(e.Status), e.Category,
		e.Merchant, e.Notes, boolToInt(e.Reimbursable), e.PaymentMethod,
		boolToInt(e.HasReceipt), e.ReceiptURI)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"title", e.Title,
		"amount_pence", e.Amount.Pence,
		"status", e.Status)

	r.changes.Publish(struct{}{})
	return id, nil
}

func (r *ExpenseRepository) Update(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET title = ?, amount_pence = ?, timestamp_ms = ?,
			status = ?, category = ?, merchant = ?, notes = ?, reimbursable = ?,
			payment_method = ?, has_receipt = ?, receipt_uri = ?
		WHERE id = ?`,
		e.Title, e.Amount.Pence, e.Timestamp, string(e.Status), e.Category,
		e.Merchant, e.Notes, boolToInt(e.Reimbursable), e.PaymentMethod,
		boolToInt(e.HasReceipt), e.ReceiptURI, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	r.changes.Publish(struct{}{})
	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	// Deleting a missing id is a no-op; only real removals tick the feed.
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.changes.Publish(struct{}{})
	}
	return nil
}

func (r *ExpenseRepository) Get(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *ExpenseRepository) ListFiltered(ctx context.Context, f core.Filter) ([]core.Expense, error) {
	var (
		conds []string
		args  []any
	)
	if f.Category != nil {
		conds = append(conds, "category = ?")
		args = append(args, *f.Category)
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.HasReceipt != nil {
		conds = append(conds, "has_receipt = ?")
		args = append(args, boolToInt(*f.HasReceipt))
	}
	if f.FromDate != nil {
		conds = append(conds, "timestamp_ms >= ?")
		args = append(args, *f.FromDate)
	}
	if f.ToDate != nil {
		conds = append(conds, "timestamp_ms <= ?")
		args = append(args, *f.ToDate)
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp_ms DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func (r *ExpenseRepository) ListByStatus(ctx context.Context, status core.ExpenseStatus) ([]core.Expense, error) {
	return r.ListFiltered(ctx, core.Filter{Status: &status})
}

func (r *ExpenseRepository) SuggestMerchants(ctx context.Context, prefix string, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT merchant FROM expenses
		WHERE merchant <> '' AND merchant LIKE ? ESCAPE '\'
		ORDER BY merchant ASC
		LIMIT ?`,
		escapeLike(prefix)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("suggest merchants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("suggest merchants: %w", err)
	}
	return out, nil
}

// MileageRepository implements mileage.EntryStore on SQLite.
type MileageRepository struct {
	db *sql.DB
}

const mileageColumns = `id, epoch_day, from_label, to_label, distance_meters,
	rate_pence_per_mile, amount_pence, notes`

func (r *MileageRepository) Upsert(ctx context.Context, e core.MileageEntry) (int64, error) {
	if e.ID == 0 {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO mileage_entries (epoch_day, from_label, to_label,
				distance_meters, rate_pence_per_mile, amount_pence, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.Date.EpochDay(), e.FromLabel, e.ToLabel,
			e.DistanceMeters, e.RatePencePerMile, e.AmountPence, e.Notes)
		if err != nil {
			return 0, fmt.Errorf("insert mileage entry: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("insert mileage entry id: %w", err)
		}
		return id, nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mileage_entries (id, epoch_day, from_label, to_label,
			distance_meters, rate_pence_per_mile, amount_pence, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			epoch_day = excluded.epoch_day,
			from_label = excluded.from_label,
			to_label = excluded.to_label,
			distance_meters = excluded.distance_meters,
			rate_pence_per_mile = excluded.rate_pence_per_mile,
			amount_pence = excluded.amount_pence,
			notes = excluded.notes`,
		e.ID, e.Date.EpochDay(), e.FromLabel, e.ToLabel,
		e.DistanceMeters, e.RatePencePerMile, e.AmountPence, e.Notes)
	if err != nil {
		return 0, fmt.Errorf("upsert mileage entry: %w", err)
	}
	return e.ID, nil
}

func (r *MileageRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM mileage_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete mileage entry: %w", err)
	}
	return nil
}

func (r *MileageRepository) List(ctx context.Context) ([]core.MileageEntry, error) {
	return r.list(ctx, `SELECT `+mileageColumns+` FROM mileage_entries
		ORDER BY epoch_day DESC, id DESC`)
}

func (r *MileageRepository) ListRange(ctx context.Context, from, to core.Date) ([]core.MileageEntry, error) {
	return r.list(ctx, `SELECT `+mileageColumns+` FROM mileage_entries
		WHERE epoch_day BETWEEN ? AND ?
		ORDER BY epoch_day DESC, id DESC`,
		from.EpochDay(), to.EpochDay())
}

func (r *MileageRepository) SumRange(ctx context.Context, from, to core.Date) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_pence), 0) FROM mileage_entries
		WHERE epoch_day BETWEEN ? AND ?`,
		from.EpochDay(), to.EpochDay()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum mileage entries: %w", err)
	}
	return total, nil
}

func (r *MileageRepository) list(ctx context.Context, query string, args ...any) ([]core.MileageEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mileage entries: %w", err)
	}
	defer rows.Close()

	var out []core.MileageEntry
	for rows.Next() {
		var (
			e        core.MileageEntry
			epochDay int64
		)
		if err := rows.Scan(&e.ID, &epochDay, &e.FromLabel, &e.ToLabel,
			&e.DistanceMeters, &e.RatePencePerMile, &e.AmountPence, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan mileage entry: %w", err)
		}
		e.Date = core.DateFromEpochDay(epochDay)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mileage entries: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                        core.Expense
		status                   string
		reimbursable, hasReceipt int64
	)
	err := row.Scan(&e.ID, &e.Title, &e.Amount.Pence, &e.Timestamp, &status,
		&e.Category, &e.Merchant, &e.Notes, &reimbursable, &e.PaymentMethod,
		&hasReceipt, &e.ReceiptURI)
	if err != nil {
		return core.Expense{}, err
	}
	e.Status = core.ExpenseStatus(status)
	e.Reimbursable = reimbursable != 0
	e.HasReceipt = hasReceipt != 0
	return e, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// escapeLike protects LIKE metacharacters in user-supplied prefixes.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
