/*
Package importer turns external tabular files into ledger candidates.

PURPOSE:
  Bulk import reads a CSV or XLSX file exported by a bank or spreadsheet,
  maps its columns onto the ledger's fields and validates each row before
  anything reaches a Manager.

COLUMN MAPPING:
  Header cells are matched exactly after trimming. The first synonym present
  wins:

    date        date, Date
    category    category, Category
    description item, Item, description, Description
    amount      cost, Cost, amount, Amount

  A missing amount column (or an empty amount cell) reads as "0" and is later
  rejected as non-positive. Missing category or description columns read as
  empty strings.

WHOLE-FILE FAILURES (*ParseError, errors.Is(err, ErrParse)):
  Unreadable file, no header row, malformed CSV quoting, unreadable workbook,
  or a header with none of the recognised columns.

USAGE:
  rows, err := importer.Parse("statement.csv")
  valid, rowErrs := importer.Validate(rows)
  res, err := mgr.BulkAdd(ctx, valid)
*/
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/warp/expense-ledger/ledger"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrParse     = errors.New("import file could not be parsed")
	ErrNoHeader  = errors.New("file has no header row")
	ErrNoColumns = errors.New("no recognised columns in header")
)

// ParseError is a whole-file import failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse import: %v", e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// =============================================================================
// COLUMN SYNONYMS
// =============================================================================

type field int

const (
	fieldDate field = iota
	fieldCategory
	fieldDescription
	fieldAmount
)

var synonyms = [...][]string{
	fieldDate:        {"date", "Date"},
	fieldCategory:    {"category", "Category"},
	fieldDescription: {"item", "Item", "description", "Description"},
	fieldAmount:      {"cost", "Cost", "amount", "Amount"},
}

// columns maps each field to its column index, -1 when absent.
type columns [4]int

func resolveColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var cols columns
	found := false
	for f, names := range synonyms {
		cols[f] = -1
		for _, name := range names {
			if i, ok := index[name]; ok {
				cols[f] = i
				found = true
				break
			}
		}
	}
	if !found {
		return cols, ErrNoColumns
	}
	return cols, nil
}

func (c columns) candidate(line int, row []string) ledger.Candidate {
	cell := func(f field) string {
		i := c[f]
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}
	amount := cell(fieldAmount)
	if strings.TrimSpace(amount) == "" {
		amount = "0"
	}
	return ledger.Candidate{
		Line:        line,
		Date:        cell(fieldDate),
		Category:    cell(fieldCategory),
		Description: cell(fieldDescription),
		Amount:      amount,
	}
}

// =============================================================================
// PARSERS
// =============================================================================

// Parse reads the file at path. .xlsx and .xlsm files are read as workbooks
// (first sheet); anything else is read as CSV.
func Parse(path string) ([]ledger.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	var rows []ledger.Candidate
	if IsWorkbook(path) {
		rows, err = ParseXLSX(f)
	} else {
		rows, err = ParseCSV(f)
	}
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return rows, nil
}

// IsWorkbook reports whether name has a spreadsheet extension.
func IsWorkbook(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// ParseCSV reads comma-separated rows with a header line.
func ParseCSV(r io.Reader) ([]ledger.Candidate, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return fromTable(records)
}

// ParseXLSX reads the first sheet of a workbook. Cells are read raw, so
// numeric amounts keep full precision; date cells holding Excel serial
// numbers are converted to YYYY-MM-DD.
func ParseXLSX(r io.Reader) ([]ledger.Candidate, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Err: ErrNoHeader}
	}
	table, err := wb.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	rows, err := fromTable(table)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Date = serialDate(rows[i].Date)
	}
	return rows, nil
}

func fromTable(table [][]string) ([]ledger.Candidate, error) {
	if len(table) == 0 {
		return nil, &ParseError{Err: ErrNoHeader}
	}
	cols, err := resolveColumns(table[0])
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	rows := make([]ledger.Candidate, 0, len(table)-1)
	for i, row := range table[1:] {
		if blank(row) {
			continue
		}
		rows = append(rows, cols.candidate(i+1, row))
	}
	return rows, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func serialDate(s string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return s
	}
	t, err := excelize.ExcelDateToTime(v, false)
	if err != nil {
		return s
	}
	return t.Format(ledger.DateLayout)
}
