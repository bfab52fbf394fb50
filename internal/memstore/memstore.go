// Package memstore provides in-memory implementations of the expense and
// mileage store ports. It backs the default dev configuration and the engine
// tests; semantics match the SQLite store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"simpleexpenses/internal/core"
	"simpleexpenses/internal/feed"
)

// Expenses is an in-memory ledger.ExpenseStore.
type Expenses struct {
	mu      sync.Mutex
	nextID  int64
	order   []int64 // insertion order, newest appended last
	items   map[int64]core.Expense
	changes *feed.Feed[struct{}]
}

func NewExpenses() *Expenses {
	return &Expenses{
		nextID:  1,
		items:   make(map[int64]core.Expense),
		changes: feed.New[struct{}](),
	}
}

func (s *Expenses) Changes() *feed.Feed[struct{}] {
	return s.changes
}

func (s *Expenses) Insert(_ context.Context, e core.Expense) (int64, error) {
	s.mu.Lock()
	e.ID = s.nextID
	s.nextID++
	s.items[e.ID] = e
	s.order = append(s.order, e.ID)
	s.mu.Unlock()

	s.changes.Publish(struct{}{})
	return e.ID, nil
}

func (s *Expenses) Update(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	if _, ok := s.items[e.ID]; !ok {
		s.mu.Unlock()
		return core.ErrNotFound
	}
	s.items[e.ID] = e
	s.mu.Unlock()

	s.changes.Publish(struct{}{})
	return nil
}

func (s *Expenses) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.changes.Publish(struct{}{})
	return nil
}

func (s *Expenses) Get(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Expenses) ListFiltered(_ context.Context, f core.Filter) ([]core.Expense, error) {
	s.mu.Lock()
	out := make([]core.Expense, 0, len(s.order))
	for _, id := range s.order {
		if e := s.items[id]; f.Matches(e) {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	// Newest first, matching the SQLite store's default order.
	core.SortExpenses(out, core.SortRecent)
	return out, nil
}

func (s *Expenses) ListByStatus(ctx context.Context, status core.ExpenseStatus) ([]core.Expense, error) {
	return s.ListFiltered(ctx, core.Filter{Status: &status})
}

func (s *Expenses) SuggestMerchants(_ context.Context, prefix string, limit int) ([]string, error) {
	s.mu.Lock()
	seen := make(map[string]bool)
	var out []string
	for _, e := range s.items {
		m := strings.TrimSpace(e.Merchant)
		if m == "" || seen[m] {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(m), strings.ToLower(prefix)) {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	s.mu.Unlock()

	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Mileage is an in-memory mileage.EntryStore.
type Mileage struct {
	mu     sync.Mutex
	nextID int64
	order  []int64
	items  map[int64]core.MileageEntry
}

func NewMileage() *Mileage {
	return &Mileage{
		nextID: 1,
		items:  make(map[int64]core.MileageEntry),
	}
}

func (s *Mileage) Upsert(_ context.Context, e core.MileageEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.nextID
		s.nextID++
		s.order = append(s.order, e.ID)
	} else if _, ok := s.items[e.ID]; !ok {
		s.order = append(s.order, e.ID)
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	s.items[e.ID] = e
	return e.ID, nil
}

func (s *Mileage) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return nil
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Mileage) List(ctx context.Context) ([]core.MileageEntry, error) {
	return s.ListRange(ctx, core.DateFromEpochDay(-1<<31), core.DateFromEpochDay(1<<31))
}

func (s *Mileage) ListRange(_ context.Context, from, to core.Date) ([]core.MileageEntry, error) {
	lo, hi := from.EpochDay(), to.EpochDay()

	s.mu.Lock()
	out := make([]core.MileageEntry, 0, len(s.order))
	for _, id := range s.order {
		e := s.items[id]
		if d := e.Date.EpochDay(); d >= lo && d <= hi {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date.EpochDay(), out[j].Date.EpochDay()
		if di != dj {
			return di > dj
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Mileage) SumRange(ctx context.Context, from, to core.Date) (int64, error) {
	entries, err := s.ListRange(ctx, from, to)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += int64(e.AmountPence)
	}
	return total, nil
}
