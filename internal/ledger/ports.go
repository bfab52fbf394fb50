package ledger

import (
	"context"

	"simpleexpenses/internal/core"
	"simpleexpenses/internal/feed"
)

// ExpenseStore is the persistence collaborator the query engine reads and
// writes through. Implementations own the records; the engine keeps only
// transient projections of the latest snapshot.
type ExpenseStore interface {
	// Insert stores a new expense and returns the assigned id.
	Insert(ctx context.Context, e core.Expense) (int64, error)

	// Update replaces the full record by id. Returns core.ErrNotFound when
	// the id does not exist.
	Update(ctx context.Context, e core.Expense) error

	// Delete removes by id. Deleting a missing id is a no-op.
	Delete(ctx context.Context, id int64) error

	// Get returns the record by id, or core.ErrNotFound.
	Get(ctx context.Context, id int64) (core.Expense, error)

	// ListFiltered returns records matching every non-nil filter constraint,
	// newest first.
	ListFiltered(ctx context.Context, f core.Filter) ([]core.Expense, error)

	// ListByStatus returns records with the given status, newest first.
	ListByStatus(ctx context.Context, status core.ExpenseStatus) ([]core.Expense, error)

	// SuggestMerchants returns distinct non-blank merchants matching the
	// prefix case-insensitively, ascending, capped at limit.
	SuggestMerchants(ctx context.Context, prefix string, limit int) ([]string, error)

	// Changes is the store's change feed; a value is published after every
	// committed mutation.
	Changes() *feed.Feed[struct{}]
}
