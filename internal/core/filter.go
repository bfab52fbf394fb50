package core

import (
	"sort"
	"strings"
)

// Filter is the persistent expense filter. All fields are pointers so "not
// set" is distinguishable from a zero value; a nil field means no constraint.
// The transient free-text query and sort key live in ViewOptions, not here:
// the per-status summary reflects the Filter only.
type Filter struct {
	Category   *string
	Status     *ExpenseStatus
	HasReceipt *bool
	FromDate   *int64 // inclusive, ms since epoch
	ToDate     *int64 // inclusive, ms since epoch
}

// IsZero reports whether the filter carries no constraints.
func (f Filter) IsZero() bool {
	return f.Category == nil && f.Status == nil && f.HasReceipt == nil &&
		f.FromDate == nil && f.ToDate == nil
}

// Matches reports whether every non-nil constraint holds for e. Constraint
// fields are independent, so the result does not depend on evaluation order.
func (f Filter) Matches(e Expense) bool {
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	if f.HasReceipt != nil && e.HasReceipt != *f.HasReceipt {
		return false
	}
	if f.FromDate != nil && e.Timestamp < *f.FromDate {
		return false
	}
	if f.ToDate != nil && e.Timestamp > *f.ToDate {
		return false
	}
	return true
}

// SortOption selects the display order of the expense list.
type SortOption string

const (
	SortRecent     SortOption = "recent"
	SortOldest     SortOption = "oldest"
	SortAmountAsc  SortOption = "amount_asc"
	SortAmountDesc SortOption = "amount_desc"
)

// ParseSortOption maps stored/query text to a SortOption, defaulting to
// most-recent-first for unknown values.
func ParseSortOption(s string) SortOption {
	switch SortOption(s) {
	case SortOldest, SortAmountAsc, SortAmountDesc:
		return SortOption(s)
	default:
		return SortRecent
	}
}

// ViewOptions are the transient, caller-owned list settings applied after the
// persistent Filter: free-text search, sort order, and the quick predicates
// the list screen offers.
type ViewOptions struct {
	Query            string
	Sort             SortOption
	ReimbursableOnly bool
	PaymentMethod    *string
}

// MatchesQuery reports whether q is blank or a case-insensitive substring of
// the title or of the merchant (when present).
func MatchesQuery(e Expense, q string) bool {
	q = strings.TrimSpace(q)
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(e.Title), q) {
		return true
	}
	return e.Merchant != "" && strings.Contains(strings.ToLower(e.Merchant), q)
}

// SortExpenses orders the slice in place by the given key. The sort is stable:
// ties keep their original relative order so snapshots are reproducible.
func SortExpenses(list []Expense, key SortOption) {
	switch key {
	case SortOldest:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp < list[j].Timestamp })
	case SortAmountAsc:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Amount.Pence < list[j].Amount.Pence })
	case SortAmountDesc:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Amount.Pence > list[j].Amount.Pence })
	default: // SortRecent
		sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp > list[j].Timestamp })
	}
}
