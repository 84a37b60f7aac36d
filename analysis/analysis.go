/*
Package analysis aggregates ledger records for reporting.

Every function is pure: it reads the records it is given, never a store,
and never mutates its input. Callers usually pass Manager.FilterByMonth.

  - MonthlySummary:    total, average per recorded day, top category
  - CategoryBreakdown: total per category
  - DailyTrend:        total per date, ascending
  - RankCategories:    categories by amount with their share of the total
*/
package analysis

import (
	"cmp"
	"maps"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/warp/expense-ledger/ledger"
)

// NoCategory is the top category of an empty record set.
const NoCategory = "N/A"

type Summary struct {
	Total             decimal.Decimal
	AveragePerDay     decimal.Decimal
	Days              int // distinct dates with at least one record
	TopCategory       string
	TopCategoryAmount decimal.Decimal
}

// MonthlySummary summarises records. The average divides by the number of
// distinct dates, or by 1 when there are none. Ties for the top category go
// to the lexicographically smallest name.
func MonthlySummary(records []ledger.Record) Summary {
	total := decimal.Zero
	days := make(map[ledger.Date]struct{})
	for _, r := range records {
		total = total.Add(r.Amount)
		days[r.Date] = struct{}{}
	}

	divisor := len(days)
	if divisor == 0 {
		divisor = 1
	}

	s := Summary{
		Total:             total,
		AveragePerDay:     total.Div(decimal.NewFromInt(int64(divisor))),
		Days:              len(days),
		TopCategory:       NoCategory,
		TopCategoryAmount: decimal.Zero,
	}
	if ranked := RankCategories(records, 1); len(ranked) > 0 {
		s.TopCategory = ranked[0].Category
		s.TopCategoryAmount = ranked[0].Amount
	}
	return s
}

// CategoryBreakdown returns the summed amount per category.
func CategoryBreakdown(records []ledger.Record) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, r := range records {
		out[r.Category] = out[r.Category].Add(r.Amount)
	}
	return out
}

type DailyTotal struct {
	Date   ledger.Date
	Amount decimal.Decimal
}

// DailyTrend returns one entry per distinct date, ascending by date.
func DailyTrend(records []ledger.Record) []DailyTotal {
	byDay := make(map[ledger.Date]decimal.Decimal)
	for _, r := range records {
		byDay[r.Date] = byDay[r.Date].Add(r.Amount)
	}

	out := make([]DailyTotal, 0, len(byDay))
	for d, amt := range byDay {
		out = append(out, DailyTotal{Date: d, Amount: amt})
	}
	slices.SortFunc(out, func(a, b DailyTotal) int {
		return a.Date.Time.Compare(b.Date.Time)
	})
	return out
}

// CategoryShare is one line of a ranked breakdown. Percent is 0..100.
type CategoryShare struct {
	Category string
	Amount   decimal.Decimal
	Percent  decimal.Decimal
}

// RankCategories orders categories by amount, largest first, then by name.
// limit <= 0 returns all of them.
func RankCategories(records []ledger.Record, limit int) []CategoryShare {
	breakdown := CategoryBreakdown(records)
	total := decimal.Zero
	for _, amt := range breakdown {
		total = total.Add(amt)
	}

	names := slices.Collect(maps.Keys(breakdown))
	slices.SortFunc(names, func(a, b string) int {
		if c := breakdown[b].Cmp(breakdown[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	hundred := decimal.NewFromInt(100)
	out := make([]CategoryShare, 0, len(names))
	for _, name := range names {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = breakdown[name].Mul(hundred).Div(total)
		}
		out = append(out, CategoryShare{Category: name, Amount: breakdown[name], Percent: pct})
	}
	return out
}
