// Package ledger implements the expense ledger query engine: a composable
// filter, free-text search, sort order, and per-status aggregation over the
// expense collection owned by a persistence collaborator.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"simpleexpenses/internal/core"
)

// MerchantSuggestionLimit caps the number of merchant suggestions returned.
const MerchantSuggestionLimit = 10

// Engine derives displayed views of the expense ledger. It holds no
// authoritative data: only the current filter, query, and sort selection,
// which belong to a single UI-facing caller. Engine is not safe for
// concurrent mutation of that selection; the store it delegates to is.
type Engine struct {
	store ExpenseStore

	filter core.Filter
	view   core.ViewOptions
}

func New(store ExpenseStore) *Engine {
	return &Engine{
		store: store,
		view:  core.ViewOptions{Sort: core.SortRecent},
	}
}

// --- Filter and view selection ---

// SetCategory constrains the filter to one category; blank or nil clears the
// constraint.
func (en *Engine) SetCategory(v *string) {
	if v != nil && strings.TrimSpace(*v) == "" {
		v = nil
	}
	en.filter.Category = v
}

func (en *Engine) SetStatus(v *core.ExpenseStatus) {
	en.filter.Status = v
}

func (en *Engine) SetHasReceipt(v *bool) {
	en.filter.HasReceipt = v
}

// SetDateRange constrains the filter to [from, to] inclusive timestamps.
func (en *Engine) SetDateRange(from, to *int64) {
	en.filter.FromDate = from
	en.filter.ToDate = to
}

// ClearFilter resets the persistent filter to "no constraints".
func (en *Engine) ClearFilter() {
	en.filter = core.Filter{}
}

// SetFilter replaces the whole filter value at once.
func (en *Engine) SetFilter(f core.Filter) {
	en.filter = f
}

// Filter returns the current filter value.
func (en *Engine) Filter() core.Filter {
	return en.filter
}

func (en *Engine) SetQuery(q string) {
	en.view.Query = q
}

func (en *Engine) SetSort(s core.SortOption) {
	en.view.Sort = s
}

func (en *Engine) SetReimbursableOnly(v bool) {
	en.view.ReimbursableOnly = v
}

func (en *Engine) SetPaymentMethod(v *string) {
	if v != nil && strings.TrimSpace(*v) == "" {
		v = nil
	}
	en.view.PaymentMethod = v
}

// SetViewOptions replaces all transient view settings at once.
func (en *Engine) SetViewOptions(v core.ViewOptions) {
	if v.Sort == "" {
		v.Sort = core.SortRecent
	}
	en.view = v
}

// --- Mutations ---

// Add validates and inserts a new expense, returning it with the assigned id.
// Validation is re-enforced here so importers and tests cannot bypass the edit
// form's checks; no store call happens on invalid input.
func (en *Engine) Add(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e = e.Normalized()
	e.ID = 0 // the store assigns identity

	id, err := en.store.Insert(ctx, e)
	if err != nil {
		return core.Expense{}, storeErr("insert expense", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Expense added",
		"id", e.ID,
		"title", e.Title,
		"amount_pence", e.Amount.Pence,
		"status", string(e.Status))
	return e, nil
}

// Update replaces the full record by id.
func (en *Engine) Update(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == 0 {
		return core.ErrNotFound
	}
	e = e.Normalized()

	if err := en.store.Update(ctx, e); err != nil {
		return storeErr("update expense", err)
	}
	slog.InfoContext(ctx, "Expense updated", "id", e.ID, "status", string(e.Status))
	return nil
}

// Delete removes by id. Deletion is idempotent: a missing id is a no-op, so
// callers can retry freely and implement undo as a plain re-add.
func (en *Engine) Delete(ctx context.Context, id int64) error {
	if err := en.store.Delete(ctx, id); err != nil {
		return storeErr("delete expense", err)
	}
	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

// Get returns a single expense by id.
func (en *Engine) Get(ctx context.Context, id int64) (core.Expense, error) {
	e, err := en.store.Get(ctx, id)
	if err != nil {
		return core.Expense{}, storeErr("get expense", err)
	}
	return e, nil
}

// SetExpenseStatus performs the quick status-change action: point lookup,
// replace status, full update.
func (en *Engine) SetExpenseStatus(ctx context.Context, id int64, status core.ExpenseStatus) error {
	if !status.Valid() {
		return core.ErrInvalidStatus
	}
	e, err := en.Get(ctx, id)
	if err != nil {
		return err
	}
	e.Status = status
	return en.Update(ctx, e)
}

// AttachReceipt sets the receipt reference on an expense. The hasReceipt flag
// follows the uri through normalization.
func (en *Engine) AttachReceipt(ctx context.Context, id int64, uri string) error {
	if strings.TrimSpace(uri) == "" {
		return fmt.Errorf("%w: empty receipt uri", core.ErrValidation)
	}
	e, err := en.Get(ctx, id)
	if err != nil {
		return err
	}
	e.ReceiptURI = uri
	return en.Update(ctx, e)
}

// ClearReceipt removes the receipt reference from an expense.
func (en *Engine) ClearReceipt(ctx context.Context, id int64) error {
	e, err := en.Get(ctx, id)
	if err != nil {
		return err
	}
	e.ReceiptURI = ""
	return en.Update(ctx, e)
}

// --- Queries ---

// SuggestMerchants returns distinct merchant values for the prefix, ascending,
// capped at MerchantSuggestionLimit. Matching is case-insensitive.
func (en *Engine) SuggestMerchants(ctx context.Context, prefix string) ([]string, error) {
	out, err := en.store.SuggestMerchants(ctx, strings.TrimSpace(prefix), MerchantSuggestionLimit)
	if err != nil {
		return nil, storeErr("suggest merchants", err)
	}
	return out, nil
}

// DerivedView recomputes the displayed state from the latest snapshot.
//
// The pipeline order is fixed: the persistent filter first (pushed down to the
// store), then the transient predicates and free-text query, then a stable
// sort. The per-status summary covers the filter-only set; the grand total and
// count cover the fully filtered, visible set.
func (en *Engine) DerivedView(ctx context.Context) (core.DerivedView, error) {
	filtered, err := en.store.ListFiltered(ctx, en.filter)
	if err != nil {
		return core.DerivedView{}, storeErr("list expenses", err)
	}

	var view core.DerivedView
	for _, e := range filtered {
		view.Summary.Add(e)
	}

	visible := make([]core.Expense, 0, len(filtered))
	for _, e := range filtered {
		if en.view.ReimbursableOnly && !e.Reimbursable {
			continue
		}
		if en.view.PaymentMethod != nil && e.PaymentMethod != *en.view.PaymentMethod {
			continue
		}
		if !core.MatchesQuery(e, en.view.Query) {
			continue
		}
		visible = append(visible, e)
	}
	core.SortExpenses(visible, en.view.Sort)

	view.Expenses = visible
	view.VisibleCount = len(visible)
	for _, e := range visible {
		view.VisibleTotal.Pence += e.Amount.Pence
	}
	return view, nil
}

// Observe emits a derived view for the current snapshot and again after every
// store change, until ctx is cancelled. Delivery is latest-wins: a consumer
// that falls behind sees the newest view, never a stale one. Abandoning the
// channel has no side effects on the store.
func (en *Engine) Observe(ctx context.Context) <-chan core.DerivedView {
	out := make(chan core.DerivedView, 1)
	ticks, stop := en.store.Changes().Subscribe(ctx)

	emit := func() {
		view, err := en.DerivedView(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.ErrorContext(ctx, "Derive view failed", "error", err)
			}
			return
		}
		select {
		case out <- view:
		default:
			select {
			case <-out:
			default:
			}
			select {
			case out <- view:
			default:
			}
		}
	}

	go func() {
		defer stop()
		defer close(out)
		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				emit()
			}
		}
	}()
	return out
}

// storeErr passes expected conditions through and wraps everything else as an
// opaque storage fault. The engine never retries; retry policy belongs to the
// caller.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrNotFound) || core.IsValidation(err) {
		return err
	}
	return &core.StorageError{Op: op, Err: err}
}
