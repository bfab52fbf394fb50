package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusSubmitted ExpenseStatus = "Submitted"
	StatusApproved  ExpenseStatus = "Approved"
	StatusPaid      ExpenseStatus = "Paid"
)

const (
	DefaultCategory      = "General"
	DefaultPaymentMethod = "Personal"
)

type (
	ExpenseStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Pence int64
	}

	Expense struct {
		ID            int64
		Title         string
		Amount        Money
		Timestamp     int64 // milliseconds since epoch
		Status        ExpenseStatus
		Category      string
		Merchant      string
		Notes         string
		Reimbursable  bool
		PaymentMethod string
		HasReceipt    bool
		ReceiptURI    string
	}

	MileageEntry struct {
		ID               int64
		Date             Date
		FromLabel        string
		ToLabel          string
		DistanceMeters   int
		RatePencePerMile int
		AmountPence      int // cached derivation, recomputed on every save
		Notes            string
	}
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrEmptyTitle       = errors.New("validation failed: empty title")
	ErrInvalidAmount    = errors.New("validation failed: amount must be positive")
	ErrInvalidStatus    = errors.New("validation failed: unknown status")
	ErrNegativeDistance = errors.New("validation failed: distance must not be negative")
	ErrNotFound         = errors.New("record not found")
)

// StorageError wraps an unexpected persistence fault. Expected conditions
// (missing record, bad input) never surface as StorageError.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err belongs to the validation taxonomy.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrNegativeDistance)
}

// ParseStatus converts stored text to an ExpenseStatus.
func ParseStatus(s string) (ExpenseStatus, error) {
	switch ExpenseStatus(s) {
	case StatusSubmitted, StatusApproved, StatusPaid:
		return ExpenseStatus(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s ExpenseStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusApproved, StatusPaid:
		return true
	}
	return false
}

// NewExpense builds an expense with the documented defaults applied.
func NewExpense(title string, amount Money) Expense {
	return Expense{
		Title:         title,
		Amount:        amount,
		Timestamp:     time.Now().UnixMilli(),
		Status:        StatusSubmitted,
		Category:      DefaultCategory,
		Reimbursable:  true,
		PaymentMethod: DefaultPaymentMethod,
	}
}

func (m Money) Validate() error {
	if m.Pence <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Status != "" && !e.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Normalized returns a copy with defaults filled in and the receipt invariant
// restored: HasReceipt is true iff ReceiptURI is non-empty.
func (e Expense) Normalized() Expense {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Status == "" {
		e.Status = StatusSubmitted
	}
	if strings.TrimSpace(e.Category) == "" {
		e.Category = DefaultCategory
	}
	if strings.TrimSpace(e.PaymentMethod) == "" {
		e.PaymentMethod = DefaultPaymentMethod
	}
	e.HasReceipt = strings.TrimSpace(e.ReceiptURI) != ""
	return e
}

// NewDate creates a calendar date (no time component, UTC).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateFromEpochDay is the inverse of EpochDay.
func DateFromEpochDay(days int64) Date {
	return Date{Time: time.Unix(days*86400, 0).UTC()}
}

// EpochDay returns days since 1970-01-01, the storage representation.
func (d Date) EpochDay() int64 {
	return d.Unix() / 86400
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}
