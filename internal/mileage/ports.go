package mileage

import (
	"context"

	"simpleexpenses/internal/core"
)

// EntryStore is the persistence collaborator for mileage entries.
type EntryStore interface {
	// Upsert inserts when id is 0, replaces otherwise, returning the id.
	Upsert(ctx context.Context, e core.MileageEntry) (int64, error)

	// Delete removes by id; missing ids are a no-op.
	Delete(ctx context.Context, id int64) error

	// List returns all entries, newest date first, id descending on ties.
	List(ctx context.Context) ([]core.MileageEntry, error)

	// ListRange returns entries with date in [from, to] inclusive, in the
	// same order as List.
	ListRange(ctx context.Context, from, to core.Date) ([]core.MileageEntry, error)

	// SumRange returns the sum of amountPence for dates in [from, to]
	// inclusive; 0 when no entry matches.
	SumRange(ctx context.Context, from, to core.Date) (int64, error)
}
