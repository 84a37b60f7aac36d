package importer

import (
	"fmt"
	"strings"

	"github.com/warp/expense-ledger/ledger"
)

// DefaultPreviewLimit caps how many rows or messages an import preview shows.
const DefaultPreviewLimit = 50

// RowError reports why one import row was rejected. Row is 1-based.
type RowError struct {
	Row    int
	Reason error
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, capitalize(e.Reason.Error()))
}

func (e RowError) Unwrap() error { return e.Reason }

// Validate splits rows into the ones that would be accepted and a RowError
// for each one that would not. Valid rows are returned unchanged, in order.
func Validate(rows []ledger.Candidate) (valid []ledger.Candidate, errs []RowError) {
	for i, c := range rows {
		if _, err := c.Coerce(); err != nil {
			line := c.Line
			if line == 0 {
				line = i + 1
			}
			errs = append(errs, RowError{Row: line, Reason: err})
			continue
		}
		valid = append(valid, c)
	}
	return valid, errs
}

// Messages renders at most limit errors, one per line, followed by a
// "... and N more" line when some were left out. limit <= 0 means no cap.
func Messages(errs []RowError, limit int) []string {
	shown := errs
	if limit > 0 && len(errs) > limit {
		shown = errs[:limit]
	}
	out := make([]string, 0, len(shown)+1)
	for _, e := range shown {
		out = append(out, e.Error())
	}
	if rest := len(errs) - len(shown); rest > 0 {
		out = append(out, fmt.Sprintf("... and %d more", rest))
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
