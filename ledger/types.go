/*
Package ledger provides the record management core of the expense tracker.

PURPOSE:
  A ledger is the full collection of expense records of one section
  (personal, family, business) for one user. This package owns the record
  model, identifier assignment, the advisory category set and every
  mutation. Persistence is delegated to a RecordStore; aggregation lives in
  the analysis package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record:    One financial transaction (id, date, category, description, amount)
  - Date:      A calendar date with no time component
  - Candidate: A loosely-typed row (all strings) waiting to become a Record

DESIGN PRINCIPLES:
  1. Precision: amounts use decimal.Decimal, rounded to cents on entry
  2. Monotonic IDs: ids are assigned by the Manager and never reused
  3. Whole-file durability: every mutation rewrites the section's store

USAGE:
  reg := ledger.NewRegistry(csvfile.NewBackend("./data"), "alice")
  mgr, err := reg.Manager(ctx, ledger.SectionPersonal)
  rec, err := mgr.Add(ctx, ledger.NewDate(2024, time.March, 3), "Food", "Lunch", decimal.NewFromInt(12))

SEE ALSO:
  - manager.go: Manager, the durability boundary
  - section.go: Section registry
  - store.go:   RecordStore and AuditLog interfaces
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Calendar date, no time component
// =============================================================================

// DateLayout is the on-disk and wire format of a Date.
const DateLayout = "2006-01-02"

type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Out-of-range months or days fail.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) Year() int              { return d.Time.Year() }
func (d Date) Month() time.Month      { return d.Time.Month() }
func (d Date) Day() int               { return d.Time.Day() }
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }
func (d Date) String() string         { return d.Time.Format(DateLayout) }

// InMonth reports whether the date falls in the given year and month.
func (d Date) InMonth(year int, month time.Month) bool {
	return d.Year() == year && d.Month() == month
}

// =============================================================================
// AMOUNT - Positive decimal, two fractional digits on disk
// =============================================================================

// AmountPlaces is the number of fractional digits kept for amounts.
const AmountPlaces = 2

// ParseAmount parses a decimal string such as "12", "12.5" or "-3.10".
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// FormatAmount renders an amount with exactly two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountPlaces)
}

func roundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// =============================================================================
// RECORD - One financial transaction
// =============================================================================

type Record struct {
	ID          int
	Date        Date
	Category    string
	Description string
	Amount      decimal.Decimal
}

// Row renders the record as the five persisted fields, in file order.
func (r Record) Row() []string {
	return []string{
		fmt.Sprintf("%d", r.ID),
		r.Date.String(),
		r.Category,
		r.Description,
		FormatAmount(r.Amount),
	}
}

// =============================================================================
// CANDIDATE - Loosely-typed row from an import source
// =============================================================================

// Candidate is an unvalidated record as read from an external tabular source.
// Line is the 1-based data row number in that source (0 when unknown).
type Candidate struct {
	Line        int
	Date        string
	Category    string
	Description string
	Amount      string
}

// Coerce validates the candidate and converts it into a Record without an ID.
//
// Checks run in order and the first failure is returned:
//  1. date parses as YYYY-MM-DD
//  2. amount parses as a decimal
//  3. amount is strictly positive once rounded to AmountPlaces
//  4. category is non-empty after trimming
//  5. description is non-empty after trimming
func (c Candidate) Coerce() (Record, error) {
	date, err := ParseDate(c.Date)
	if err != nil {
		return Record{}, &FieldError{Field: "date", Value: c.Date, Err: ErrInvalidDate}
	}

	amount, err := ParseAmount(c.Amount)
	if err != nil {
		return Record{}, &FieldError{Field: "amount", Value: c.Amount, Err: ErrInvalidAmount}
	}
	amount = roundAmount(amount)
	if !amount.IsPositive() {
		return Record{}, &FieldError{Field: "amount", Value: c.Amount, Err: ErrNonPositiveAmount}
	}

	category := strings.TrimSpace(c.Category)
	if category == "" {
		return Record{}, &FieldError{Field: "category", Value: c.Category, Err: ErrEmptyCategory}
	}

	description := strings.TrimSpace(c.Description)
	if description == "" {
		return Record{}, &FieldError{Field: "description", Value: c.Description, Err: ErrEmptyDescription}
	}

	return Record{
		Date:        date,
		Category:    category,
		Description: description,
		Amount:      amount,
	}, nil
}

// DefaultCategories seed the category set of a section with no records.
var DefaultCategories = []string{"Food", "Transport", "Rent", "Utilities", "Entertainment", "Misc"}
