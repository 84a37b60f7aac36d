/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Amounts travel as strings with two decimals ("12.50") so clients never
  see binary floating point rounding.

VALIDATION:
  Validation is done in handlers through ledger.Candidate.Coerce, the same
  check bulk import uses. DTOs are pure data carriers.
*/
package api

import (
	"github.com/warp/expense-ledger/analysis"
	"github.com/warp/expense-ledger/importer"
	"github.com/warp/expense-ledger/ledger"
)

// =============================================================================
// SECTIONS
// =============================================================================

type SectionDTO struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Emoji string `json:"emoji"`
	Color string `json:"color"`
}

func toSectionDTO(info ledger.SectionInfo) SectionDTO {
	return SectionDTO{
		Key:   string(info.Key),
		Label: info.Label,
		Emoji: info.Emoji,
		Color: info.Color,
	}
}

// =============================================================================
// RECORDS
// =============================================================================

type RecordDTO struct {
	ID          int    `json:"id"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func toRecordDTO(r ledger.Record) RecordDTO {
	return RecordDTO{
		ID:          r.ID,
		Date:        r.Date.String(),
		Category:    r.Category,
		Description: r.Description,
		Amount:      ledger.FormatAmount(r.Amount),
	}
}

func toRecordDTOs(records []ledger.Record) []RecordDTO {
	out := make([]RecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordDTO(r))
	}
	return out
}

// RecordRequest is the body of record create and update calls.
type RecordRequest struct {
	Date        string `json:"date"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func (req RecordRequest) candidate() ledger.Candidate {
	return ledger.Candidate{
		Date:        req.Date,
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
	}
}

type CategoryRequest struct {
	Name string `json:"name"`
}

// =============================================================================
// SUMMARY
// =============================================================================

type CategoryShareDTO struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Percent  string `json:"percent"`
}

type DailyTotalDTO struct {
	Date   string `json:"date"`
	Amount string `json:"amount"`
}

type SummaryResponse struct {
	Section           SectionDTO         `json:"section"`
	Year              int                `json:"year"`
	Month             int                `json:"month"`
	Total             string             `json:"total"`
	AveragePerDay     string             `json:"average_per_day"`
	DaysRecorded      int                `json:"days_recorded"`
	TopCategory       string             `json:"top_category"`
	TopCategoryAmount string             `json:"top_category_amount"`
	Breakdown         []CategoryShareDTO `json:"breakdown"`
	Trend             []DailyTotalDTO    `json:"trend"`
}

func toSummaryResponse(info ledger.SectionInfo, year, month int, records []ledger.Record) SummaryResponse {
	s := analysis.MonthlySummary(records)

	breakdown := []CategoryShareDTO{}
	for _, c := range analysis.RankCategories(records, 0) {
		breakdown = append(breakdown, CategoryShareDTO{
			Category: c.Category,
			Amount:   ledger.FormatAmount(c.Amount),
			Percent:  c.Percent.StringFixed(1),
		})
	}
	trend := []DailyTotalDTO{}
	for _, d := range analysis.DailyTrend(records) {
		trend = append(trend, DailyTotalDTO{Date: d.Date.String(), Amount: ledger.FormatAmount(d.Amount)})
	}

	return SummaryResponse{
		Section:           toSectionDTO(info),
		Year:              year,
		Month:             month,
		Total:             ledger.FormatAmount(s.Total),
		AveragePerDay:     ledger.FormatAmount(s.AveragePerDay),
		DaysRecorded:      s.Days,
		TopCategory:       s.TopCategory,
		TopCategoryAmount: ledger.FormatAmount(s.TopCategoryAmount),
		Breakdown:         breakdown,
		Trend:             trend,
	}
}

// =============================================================================
// IMPORT
// =============================================================================

type CandidateDTO struct {
	Row         int    `json:"row"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// ImportResponse reports a validated (and possibly committed) import.
// Added and Skipped are only set when Committed is true.
type ImportResponse struct {
	Rows      int            `json:"rows"`
	Valid     int            `json:"valid"`
	Invalid   int            `json:"invalid"`
	Errors    []string       `json:"errors"`
	Preview   []CandidateDTO `json:"preview"`
	Committed bool           `json:"committed"`
	Added     int            `json:"added"`
	Skipped   int            `json:"skipped"`
}

func toImportResponse(rows, valid []ledger.Candidate, errs []importer.RowError, limit int) ImportResponse {
	preview := valid
	if limit > 0 && len(preview) > limit {
		preview = preview[:limit]
	}
	dtos := make([]CandidateDTO, 0, len(preview))
	for _, c := range preview {
		dtos = append(dtos, CandidateDTO{
			Row:         c.Line,
			Date:        c.Date,
			Category:    c.Category,
			Description: c.Description,
			Amount:      c.Amount,
		})
	}
	return ImportResponse{
		Rows:    len(rows),
		Valid:   len(valid),
		Invalid: len(errs),
		Errors:  importer.Messages(errs, limit),
		Preview: dtos,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
