package analysis

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/expense-ledger/ledger"
)

// ReportTopN is the number of categories listed by WriteReport.
const ReportTopN = 10

// WriteReport writes the plain-text monthly analysis of records for one
// section: totals, days recorded, average per day and the top categories
// with their share of the total.
func WriteReport(w io.Writer, info ledger.SectionInfo, year int, month time.Month, records []ledger.Record) error {
	s := MonthlySummary(records)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s - MONTHLY ANALYSIS\n", info.Emoji, info.Label)
	fmt.Fprintf(&b, "%04d-%02d | %s\n\n", year, int(month), strings.Repeat("=", 60))
	fmt.Fprintf(&b, "Total Spent:   %s\n", FormatMoney(s.Total))
	fmt.Fprintf(&b, "Days Recorded: %d\n", s.Days)
	fmt.Fprintf(&b, "Average/Day:   %s\n\n", FormatMoney(s.AveragePerDay))

	ranked := RankCategories(records, ReportTopN)
	if len(ranked) == 0 {
		b.WriteString("No expenses recorded for this month.\n")
	} else {
		fmt.Fprintf(&b, "CATEGORY BREAKDOWN (Top %d):\n", ReportTopN)
		b.WriteString(strings.Repeat("-", 60) + "\n")
		for _, c := range ranked {
			fmt.Fprintf(&b, "%-20s %12s (%6s%%)\n", c.Category, FormatMoney(c.Amount), c.Percent.StringFixed(1))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// FormatMoney renders d with two decimals and comma thousands separators.
func FormatMoney(d decimal.Decimal) string {
	s := d.StringFixed(ledger.AmountPlaces)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	out := grouped.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
