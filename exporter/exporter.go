// Package exporter writes a month of ledger records to downloadable files.
//
// CSV exports use the ledger file format byte for byte, so an export can be
// dropped back into the data directory or re-imported. XLSX exports carry the
// same columns in a single sheet with numeric amounts.
package exporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/warp/expense-ledger/ledger"
	"github.com/warp/expense-ledger/store/csvfile"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" in any case; empty means csv.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType is the MIME type of files in format f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName returns <section>_<yyyy>_<mm>_expenses.<ext>.
func FileName(section ledger.Section, year int, month time.Month, f Format) string {
	return fmt.Sprintf("%s_%04d_%02d_expenses.%s", section, year, int(month), f)
}

// Write dispatches to WriteCSV or WriteXLSX.
func Write(w io.Writer, f Format, records []ledger.Record) error {
	if f == FormatXLSX {
		return WriteXLSX(w, records)
	}
	return WriteCSV(w, records)
}

// WriteCSV writes records in the ledger file format.
func WriteCSV(w io.Writer, records []ledger.Record) error {
	return csvfile.Encode(w, records)
}

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Expenses"

// WriteXLSX writes records as a one-sheet workbook.
func WriteXLSX(w io.Writer, records []ledger.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}

	header := make([]any, len(csvfile.Header))
	for i, h := range csvfile.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return err
	}

	for i, r := range records {
		row := i + 2
		amount, _ := r.Amount.Float64()
		values := []any{r.ID, r.Date.String(), r.Category, r.Description, amount}
		if err := f.SetSheetRow(SheetName, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		cell := fmt.Sprintf("E%d", row)
		if err := f.SetCellStyle(SheetName, cell, cell, amountStyle); err != nil {
			return err
		}
	}

	f.SetColWidth(SheetName, "A", "A", 8)
	f.SetColWidth(SheetName, "B", "B", 12)
	f.SetColWidth(SheetName, "C", "C", 15)
	f.SetColWidth(SheetName, "D", "D", 30)
	f.SetColWidth(SheetName, "E", "E", 12)

	return f.Write(w)
}
