package importer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/expense-ledger/ledger"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV_HeaderSynonyms(t *testing.T) {
	lower := "date,category,item,cost\n2024-01-01,Food,Tea,2.5\n"
	upper := "Date,Category,Item,Cost\n2024-01-01,Food,Tea,2.5\n"
	long := "Description,Amount,Date,Category\nTea,2.5,2024-01-01,Food\n"

	for _, in := range []string{lower, upper, long} {
		rows, err := ParseCSV(strings.NewReader(in))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, ledger.Candidate{Line: 1, Date: "2024-01-01", Category: "Food", Description: "Tea", Amount: "2.5"}, rows[0])
	}
}

func TestParseCSV_FirstSynonymWins(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("date,category,description,item,amount,cost\n2024-01-01,Food,desc,item,1,2\n"))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "item", rows[0].Description)
	assert.Equal(t, "2", rows[0].Amount)
}

func TestParseCSV_MissingColumnsDefault(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("date,notes\n2024-01-01,hello\n2024-01-02,\n"))

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "0", rows[0].Amount)
	assert.Equal(t, "", rows[0].Category)
	assert.Equal(t, "", rows[0].Description)
}

func TestParseCSV_EmptyAmountCellIsZero(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("date,category,item,cost\n2024-01-01,Food,Tea,\n"))

	require.NoError(t, err)
	assert.Equal(t, "0", rows[0].Amount)
}

func TestParseCSV_ShortRowsAndBOM(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("\ufeffdate,category,item,cost\n2024-01-01,Food\n"))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-01", rows[0].Date)
	assert.Equal(t, "", rows[0].Description)
}

func TestParseCSV_WholeFileFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		cause error
	}{
		{"empty file", "", ErrNoHeader},
		{"no recognised column", "when,what,howmuch\n2024-01-01,x,1\n", ErrNoColumns},
		{"bare quote", "date,category,item,cost\n2024-01-01,Fo\"od,Tea,1\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestParse_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.csv")

	_, err := Parse(path)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, path, pe.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_XLSXMatchesCSV(t *testing.T) {
	// GIVEN: The same table as CSV and as a workbook
	dir := t.TempDir()
	table := [][]any{
		{"Date", "Category", "Item", "Cost"},
		{"2024-02-01", "Food", "Bread", 2.4},
		{"2024-02-03", "Transport", "Bus", 1.75},
		{"2024-02-04", "", "Nothing", 0},
	}
	csvPath := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"Date,Category,Item,Cost\n2024-02-01,Food,Bread,2.4\n2024-02-03,Transport,Bus,1.75\n2024-02-04,,Nothing,0\n",
	), 0o644))
	xlsxPath := filepath.Join(dir, "in.xlsx")
	writeWorkbook(t, xlsxPath, table)

	// WHEN
	fromCSV, err := Parse(csvPath)
	require.NoError(t, err)
	fromXLSX, err := Parse(xlsxPath)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, fromCSV, fromXLSX)
}

func TestParseXLSX_SerialDates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dates.xlsx")
	// 45292 is 2024-01-01 in the 1900 date system
	writeWorkbook(t, path, [][]any{
		{"date", "category", "description", "amount"},
		{45292, "Food", "Soup", "3"},
	})

	rows, err := Parse(path)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-01", rows[0].Date)
}

func TestParseXLSX_NotAWorkbook(t *testing.T) {
	_, err := ParseXLSX(bytes.NewReader([]byte("date,category\n")))

	assert.ErrorIs(t, err, ErrParse)
}

func TestIsWorkbook(t *testing.T) {
	assert.True(t, IsWorkbook("a/b/Statement.XLSX"))
	assert.True(t, IsWorkbook("x.xlsm"))
	assert.False(t, IsWorkbook("x.csv"))
	assert.False(t, IsWorkbook("x"))
}

func writeWorkbook(t *testing.T, path string, table [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range table {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}
