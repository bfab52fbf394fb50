package core

// StatusTotal is an aggregate over one approval status.
type StatusTotal struct {
	Total Money
	Count int
}

// StatusSummary holds per-status aggregates over the filter-only set. It is
// independent of the transient search query and sort order.
type StatusSummary struct {
	Submitted StatusTotal
	Approved  StatusTotal
	Paid      StatusTotal
}

// Add accumulates one expense into the matching status bucket.
func (s *StatusSummary) Add(e Expense) {
	switch e.Status {
	case StatusApproved:
		s.Approved.Total.Pence += e.Amount.Pence
		s.Approved.Count++
	case StatusPaid:
		s.Paid.Total.Pence += e.Amount.Pence
		s.Paid.Count++
	default:
		s.Submitted.Total.Pence += e.Amount.Pence
		s.Submitted.Count++
	}
}

// DerivedView is the rendered state of the ledger for the current filter,
// query, and sort: the visible list, its grand total and count, and the
// per-status summary over the filter-only set.
type DerivedView struct {
	Expenses     []Expense
	Summary      StatusSummary
	VisibleTotal Money
	VisibleCount int
}
