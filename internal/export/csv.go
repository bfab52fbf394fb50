// Package export renders expense snapshots as CSV. The column set and
// escaping are a stable contract consumed by downstream spreadsheet imports,
// so the writer is hand-rolled rather than delegating to a codec that might
// quote differently.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"simpleexpenses/internal/core"
)

// Header is the fixed column order of every export.
var Header = []string{
	"id", "title", "amount", "status", "category", "merchant", "notes",
	"reimbursable", "paymentMethod", "hasReceipt", "receiptUri",
	"timestamp", "timestamp_local",
}

// WriteCSV writes the header and one row per expense. Rows come out in the
// order given; callers pass engine output, which is already sorted.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	if _, err := io.WriteString(w, strings.Join(Header, ",")+"\n"); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range expenses {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			escape(e.Title),
			e.Amount.Decimal(),
			string(e.Status),
			escape(e.Category),
			escape(e.Merchant),
			escape(e.Notes),
			strconv.FormatBool(e.Reimbursable),
			escape(e.PaymentMethod),
			strconv.FormatBool(e.HasReceipt),
			escape(e.ReceiptURI),
			strconv.FormatInt(e.Timestamp, 10),
			escape(localTimestamp(e.Timestamp)),
		}
		if _, err := io.WriteString(w, strings.Join(row, ",")+"\n"); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	return nil
}

func localTimestamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02T15:04:05")
}

// escape wraps a field in quotes when it contains a separator, a quote, a
// line break, or leading/trailing spaces, doubling any internal quotes.
// Everything else passes through untouched.
func escape(v string) string {
	needsQuote := strings.ContainsAny(v, ",\"\n\r") ||
		strings.HasPrefix(v, " ") || strings.HasSuffix(v, " ")
	if !needsQuote {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
