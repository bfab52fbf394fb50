package mileage

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"simpleexpenses/internal/core"
)

const metersPerMile = 1609.344

// CostPence computes the reimbursable amount for a distance at a pence-per-mile
// rate. Rounding is half-up (ties away from zero): 16093 meters at 45p/mi is
// exactly 10 miles and yields 450 pence. A zero distance yields zero pence,
// which is a valid state, not an error.
func CostPence(distanceMeters, ratePencePerMile int) int {
	miles := float64(distanceMeters) / metersPerMile
	return int(math.Round(miles * float64(ratePencePerMile)))
}

// SaveParams carry the editable fields of a mileage entry. ID 0 means insert.
type SaveParams struct {
	ID               int64
	Date             core.Date
	FromLabel        string
	ToLabel          string
	DistanceMeters   int
	RatePencePerMile int
	Notes            string
}

// Engine computes trip costs and aggregates over the mileage store. Like the
// ledger engine it owns no records, only a configured distance strategy.
type Engine struct {
	store     EntryStore
	estimator DistanceEstimator
}

func New(store EntryStore, estimator DistanceEstimator) *Engine {
	if estimator == nil {
		estimator = HaversineEstimator{}
	}
	return &Engine{store: store, estimator: estimator}
}

// EstimateMeters runs the configured distance strategy between two waypoints.
func (en *Engine) EstimateMeters(origin, dest LatLng) (int, error) {
	return en.estimator.EstimateMeters(origin, dest)
}

// Save upserts an entry. Labels are trimmed, blank notes become absent, and
// amountPence is always recomputed from distance and rate: a caller-supplied
// cached amount is never trusted. A zero distance is a valid entry; a
// negative one is rejected before any store call.
func (en *Engine) Save(ctx context.Context, p SaveParams) (core.MileageEntry, error) {
	if p.DistanceMeters < 0 {
		return core.MileageEntry{}, core.ErrNegativeDistance
	}

	entry := core.MileageEntry{
		ID:               p.ID,
		Date:             p.Date,
		FromLabel:        strings.TrimSpace(p.FromLabel),
		ToLabel:          strings.TrimSpace(p.ToLabel),
		DistanceMeters:   p.DistanceMeters,
		RatePencePerMile: p.RatePencePerMile,
		AmountPence:      CostPence(p.DistanceMeters, p.RatePencePerMile),
	}
	if strings.TrimSpace(p.Notes) != "" {
		entry.Notes = p.Notes
	}

	id, err := en.store.Upsert(ctx, entry)
	if err != nil {
		return core.MileageEntry{}, &core.StorageError{Op: "upsert mileage entry", Err: err}
	}
	entry.ID = id

	slog.InfoContext(ctx, "Mileage entry saved",
		"id", entry.ID,
		"distance_meters", entry.DistanceMeters,
		"rate_pence_per_mile", entry.RatePencePerMile,
		"amount_pence", entry.AmountPence)
	return entry, nil
}

// Delete removes an entry by id. Missing ids are a silent no-op so the UI can
// retry deletes safely.
func (en *Engine) Delete(ctx context.Context, id int64) error {
	if err := en.store.Delete(ctx, id); err != nil {
		return &core.StorageError{Op: "delete mileage entry", Err: err}
	}
	slog.InfoContext(ctx, "Mileage entry deleted", "id", id)
	return nil
}

// List returns all entries, newest first.
func (en *Engine) List(ctx context.Context) ([]core.MileageEntry, error) {
	out, err := en.store.List(ctx)
	if err != nil {
		return nil, &core.StorageError{Op: "list mileage entries", Err: err}
	}
	return out, nil
}

// ListRange returns entries dated within [from, to] inclusive.
func (en *Engine) ListRange(ctx context.Context, from, to core.Date) ([]core.MileageEntry, error) {
	out, err := en.store.ListRange(ctx, from, to)
	if err != nil {
		return nil, &core.StorageError{Op: "list mileage range", Err: err}
	}
	return out, nil
}

// TotalPenceInRange sums amountPence over [from, to] inclusive, returning 0
// for an empty range.
func (en *Engine) TotalPenceInRange(ctx context.Context, from, to core.Date) (int64, error) {
	total, err := en.store.SumRange(ctx, from, to)
	if err != nil {
		return 0, &core.StorageError{Op: "sum mileage range", Err: err}
	}
	return total, nil
}

// TotalPenceInMonth sums over one calendar month.
func (en *Engine) TotalPenceInMonth(ctx context.Context, year, month int) (int64, error) {
	first := core.NewDate(year, month, 1)
	last := core.Date{Time: first.AddDate(0, 1, -1)}
	return en.TotalPenceInRange(ctx, first, last)
}
