package memstore_test

import (
	"context"
	"errors"
	"testing"

	"simpleexpenses/internal/core"
	"simpleexpenses/internal/memstore"
)

func TestExpensesInsertAssignsSequentialIDs(t *testing.T) {
	s := memstore.NewExpenses()
	ctx := context.Background()

	a := core.NewExpense("Coffee", core.Money{Pence: 250})
	b := core.NewExpense("Lunch", core.Money{Pence: 900})

	idA, err := s.Insert(ctx, a)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	idB, err := s.Insert(ctx, b)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if idA == 0 || idB != idA+1 {
		t.Fatalf("ids not sequential: %d, %d", idA, idB)
	}
}

func TestExpensesUpdateMissing(t *testing.T) {
	s := memstore.NewExpenses()
	e := core.NewExpense("Coffee", core.Money{Pence: 250})
	e.ID = 42
	if err := s.Update(context.Background(), e); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestExpensesDeleteMissingIsNoop(t *testing.T) {
	s := memstore.NewExpenses()
	if err := s.Delete(context.Background(), 42); err != nil {
		t.Fatalf("delete of unknown id: %v", err)
	}
}

func TestSuggestMerchants(t *testing.T) {
	s := memstore.NewExpenses()
	ctx := context.Background()

	for _, m := range []string{"Tesco", "tesco", "Tesla", "Uber", "Tesco"} {
		e := core.NewExpense("x", core.Money{Pence: 100})
		e.Merchant = m
		if _, err := s.Insert(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.SuggestMerchants(ctx, "te", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	// Distinct values, lexicographic, prefix match case-insensitive.
	want := []string{"Tesco", "Tesla", "tesco"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	capped, err := s.SuggestMerchants(ctx, "te", 2)
	if err != nil {
		t.Fatalf("suggest capped: %v", err)
	}
	if len(capped) != 2 {
		t.Fatalf("limit not applied: %v", capped)
	}
}

func TestMileageUpsertHonorsExplicitID(t *testing.T) {
	s := memstore.NewMileage()
	ctx := context.Background()

	id, err := s.Upsert(ctx, core.MileageEntry{
		ID:   7,
		Date: core.NewDate(2025, 4, 1), FromLabel: "A", ToLabel: "B",
		DistanceMeters: 100, RatePencePerMile: 45, AmountPence: 3,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id != 7 {
		t.Fatalf("explicit id not kept: %d", id)
	}

	// Fresh inserts continue past the explicit id.
	next, err := s.Upsert(ctx, core.MileageEntry{
		Date: core.NewDate(2025, 4, 2), FromLabel: "B", ToLabel: "C",
		DistanceMeters: 100, RatePencePerMile: 45, AmountPence: 3,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if next <= 7 {
		t.Fatalf("id sequence did not advance past explicit id: %d", next)
	}

	// Upsert with an existing id replaces, never duplicates.
	if _, err := s.Upsert(ctx, core.MileageEntry{
		ID:   7,
		Date: core.NewDate(2025, 4, 1), FromLabel: "A", ToLabel: "B2",
		DistanceMeters: 200, RatePencePerMile: 45, AmountPence: 6,
	}); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries after replace, got %d", len(list))
	}
	for _, e := range list {
		if e.ID == 7 && e.ToLabel != "B2" {
			t.Fatalf("replace did not take effect: %+v", e)
		}
	}
}
