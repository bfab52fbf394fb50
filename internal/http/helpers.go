package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"simpleexpenses/internal/core"
)

// expenseJSON is the wire shape of an expense. Field names are a stable
// contract shared with the CSV export.
type expenseJSON struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	AmountPence   int64  `json:"amountPence"`
	Timestamp     int64  `json:"timestamp"`
	Status        string `json:"status"`
	Category      string `json:"category"`
	Merchant      string `json:"merchant,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Reimbursable  bool   `json:"reimbursable"`
	PaymentMethod string `json:"paymentMethod"`
	HasReceipt    bool   `json:"hasReceipt"`
	ReceiptURI    string `json:"receiptUri,omitempty"`
}

func toWire(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:            e.ID,
		Title:         e.Title,
		AmountPence:   e.Amount.Pence,
		Timestamp:     e.Timestamp,
		Status:        string(e.Status),
		Category:      e.Category,
		Merchant:      e.Merchant,
		Notes:         e.Notes,
		Reimbursable:  e.Reimbursable,
		PaymentMethod: e.PaymentMethod,
		HasReceipt:    e.HasReceipt,
		ReceiptURI:    e.ReceiptURI,
	}
}

func fromWire(in expenseJSON) core.Expense {
	return core.Expense{
		ID:            in.ID,
		Title:         sanitizeInput(in.Title),
		Amount:        core.Money{Pence: in.AmountPence},
		Timestamp:     in.Timestamp,
		Status:        core.ExpenseStatus(in.Status),
		Category:      sanitizeInput(in.Category),
		Merchant:      sanitizeInput(in.Merchant),
		Notes:         sanitizeInput(in.Notes),
		Reimbursable:  in.Reimbursable,
		PaymentMethod: sanitizeInput(in.PaymentMethod),
		ReceiptURI:    strings.TrimSpace(in.ReceiptURI),
	}
}

func toWireList(expenses []core.Expense) []expenseJSON {
	out := make([]expenseJSON, len(expenses))
	for i, e := range expenses {
		out[i] = toWire(e)
	}
	return out
}

// parseFilter builds the persistent filter from query parameters. Absent
// parameters leave the corresponding constraint unset.
func parseFilter(r *http.Request) core.Filter {
	q := r.URL.Query()
	var f core.Filter

	if v := strings.TrimSpace(q.Get("category")); v != "" {
		f.Category = &v
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status := core.ExpenseStatus(v)
		f.Status = &status
	}
	if v := q.Get("hasReceipt"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.HasReceipt = &b
		}
	}
	if v := q.Get("from"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.FromDate = &ms
		}
	}
	if v := q.Get("to"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.ToDate = &ms
		}
	}
	return f
}

// parseViewOptions builds the transient view selection from query parameters.
func parseViewOptions(r *http.Request) core.ViewOptions {
	q := r.URL.Query()
	opts := core.ViewOptions{
		Query: strings.TrimSpace(q.Get("q")),
		Sort:  core.ParseSortOption(q.Get("sort")),
	}
	if v := q.Get("reimbursableOnly"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.ReimbursableOnly = b
		}
	}
	if v := strings.TrimSpace(q.Get("paymentMethod")); v != "" {
		opts.PaymentMethod = &v
	}
	return opts
}

// idFromPath extracts a numeric id from paths like /api/expenses/42 or
// /api/expenses/42/status, returning the id and the remaining action segment.
func idFromPath(path, prefix string) (int64, string, bool) {
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || rest == "" {
		return 0, "", false
	}
	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, action, true
}

// parseDate parses a date string in YYYY-MM-DD format.
func parseDate(dateStr string) (core.Date, error) {
	parsedTime, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return core.Date{}, err
	}
	return core.Date{Time: parsedTime}, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
