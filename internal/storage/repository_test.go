package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"simpleexpenses/internal/core"
	"simpleexpenses/internal/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestExpenseRoundTrip(t *testing.T) {
	store := openStore(t)
	repo := store.Expenses()
	ctx := context.Background()

	e := core.NewExpense("Client lunch", core.Money{Pence: 2350})
	e.Merchant = "The Ivy"
	e.Notes = "Q3 planning"
	e.ReceiptURI = "file:///receipts/1.jpg"
	e = e.Normalized()

	id, err := repo.Insert(ctx, e)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected assigned id")
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != e.Title || got.Amount.Pence != e.Amount.Pence ||
		got.Merchant != e.Merchant || got.Notes != e.Notes {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Status != core.StatusSubmitted || got.Category != "General" ||
		got.PaymentMethod != "Personal" || !got.Reimbursable {
		t.Fatalf("defaults not preserved: %+v", got)
	}
	if !got.HasReceipt || got.ReceiptURI != e.ReceiptURI {
		t.Fatalf("receipt fields lost: %+v", got)
	}
}

func TestExpenseUpdateMissing(t *testing.T) {
	store := openStore(t)
	e := core.NewExpense("Ghost", core.Money{Pence: 100})
	e.ID = 99
	if err := store.Expenses().Update(context.Background(), e); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestExpenseDeleteIdempotent(t *testing.T) {
	store := openStore(t)
	repo := store.Expenses()
	ctx := context.Background()

	id, err := repo.Insert(ctx, core.NewExpense("Coffee", core.Money{Pence: 300}))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if _, err := repo.Get(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}

func TestListFiltered(t *testing.T) {
	store := openStore(t)
	repo := store.Expenses()
	ctx := context.Background()

	seed := []struct {
		title    string
		pence    int64
		ts       int64
		status   core.ExpenseStatus
		category string
	}{
		{"Taxi", 1200, 1000, core.StatusSubmitted, "Travel"},
		{"Hotel", 9900, 2000, core.StatusApproved, "Travel"},
		{"Lunch", 1500, 3000, core.StatusSubmitted, "Meals"},
		{"Train", 4500, 4000, core.StatusPaid, "Travel"},
	}
	for _, s := range seed {
		e := core.NewExpense(s.title, core.Money{Pence: s.pence})
		e.Timestamp = s.ts
		e.Status = s.status
		e.Category = s.category
		if _, err := repo.Insert(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	travel := "Travel"
	got, err := repo.ListFiltered(ctx, core.Filter{Category: &travel})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("category filter: got %d rows", len(got))
	}
	// Newest first.
	if got[0].Title != "Train" || got[2].Title != "Taxi" {
		t.Fatalf("unexpected order: %s .. %s", got[0].Title, got[2].Title)
	}

	from, to := int64(2000), int64(3000)
	submitted := core.StatusSubmitted
	got, err = repo.ListFiltered(ctx, core.Filter{
		Status: &submitted, FromDate: &from, ToDate: &to,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Lunch" {
		t.Fatalf("combined filter: %+v", got)
	}

	// Both range endpoints are inclusive.
	got, err = repo.ListFiltered(ctx, core.Filter{FromDate: &from, ToDate: &to})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("inclusive range: got %d rows", len(got))
	}
}

func TestSuggestMerchantsDistinctOrdered(t *testing.T) {
	store := openStore(t)
	repo := store.Expenses()
	ctx := context.Background()

	for _, m := range []string{"Tesco", "Tesla", "Tesco", "Uber", ""} {
		e := core.NewExpense("x", core.Money{Pence: 100})
		e.Merchant = m
		if _, err := repo.Insert(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := repo.SuggestMerchants(ctx, "Te", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 2 || got[0] != "Tesco" || got[1] != "Tesla" {
		t.Fatalf("got %v, want [Tesco Tesla]", got)
	}

	capped, err := repo.SuggestMerchants(ctx, "Te", 1)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(capped) != 1 {
		t.Fatalf("limit not applied: %v", capped)
	}

	// LIKE metacharacters in the prefix must match literally.
	e := core.NewExpense("x", core.Money{Pence: 100})
	e.Merchant = "100% Juice"
	if _, err := repo.Insert(ctx, e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err = repo.SuggestMerchants(ctx, "100%", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 1 || got[0] != "100% Juice" {
		t.Fatalf("escaped prefix: %v", got)
	}
}

func TestMileageUpsertAndSum(t *testing.T) {
	store := openStore(t)
	repo := store.Mileage()
	ctx := context.Background()

	id, err := repo.Upsert(ctx, core.MileageEntry{
		Date: core.NewDate(2025, 6, 1), FromLabel: "Office", ToLabel: "Client",
		DistanceMeters: 16093, RatePencePerMile: 45, AmountPence: 450,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected assigned id")
	}

	// Replace by id: distance and cached amount change, nothing duplicates.
	if _, err := repo.Upsert(ctx, core.MileageEntry{
		ID:   id,
		Date: core.NewDate(2025, 6, 1), FromLabel: "Office", ToLabel: "Client",
		DistanceMeters: 32187, RatePencePerMile: 45, AmountPence: 900,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := repo.Upsert(ctx, core.MileageEntry{
		Date: core.NewDate(2025, 7, 2), FromLabel: "A", ToLabel: "B",
		DistanceMeters: 8047, RatePencePerMile: 45, AmountPence: 225,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if list[0].Date.EpochDay() != core.NewDate(2025, 7, 2).EpochDay() {
		t.Fatalf("newest date must come first: %+v", list[0])
	}

	june, err := repo.SumRange(ctx, core.NewDate(2025, 6, 1), core.NewDate(2025, 6, 30))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if june != 900 {
		t.Fatalf("june sum: got %d, want 900", june)
	}

	empty, err := repo.SumRange(ctx, core.NewDate(2030, 1, 1), core.NewDate(2030, 1, 31))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if empty != 0 {
		t.Fatalf("empty range must sum to 0, got %d", empty)
	}

	if err := repo.Delete(ctx, 12345); err != nil {
		t.Fatalf("delete of unknown id: %v", err)
	}
}

func TestChangeFeedTicksOnMutation(t *testing.T) {
	store := openStore(t)
	repo := store.Expenses()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, stop := repo.Changes().Subscribe(ctx)
	defer stop()

	if _, err := repo.Insert(ctx, core.NewExpense("Coffee", core.Money{Pence: 300})); err != nil {
		t.Fatalf("insert: %v", err)
	}
	select {
	case <-ch:
	default:
		t.Fatalf("expected a change tick after insert")
	}
}
