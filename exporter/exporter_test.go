package exporter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/expense-ledger/importer"
	"github.com/warp/expense-ledger/ledger"
	"github.com/warp/expense-ledger/store/csvfile"
)

func sample() []ledger.Record {
	return []ledger.Record{
		{ID: 4, Date: ledger.NewDate(2024, time.July, 3), Category: "Food", Description: "Pizza, large", Amount: decimal.RequireFromString("18.5")},
		{ID: 7, Date: ledger.NewDate(2024, time.July, 9), Category: "Utilities", Description: "Power", Amount: decimal.RequireFromString("61.07")},
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "family_2024_03_expenses.csv", FileName(ledger.SectionFamily, 2024, time.March, FormatCSV))
	assert.Equal(t, "business_2023_11_expenses.xlsx", FileName(ledger.SectionBusiness, 2023, time.November, FormatXLSX))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCSV, "CSV": FormatCSV, " xlsx ": FormatXLSX} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV_MatchesStoreFormat(t *testing.T) {
	// GIVEN: The same records saved by the flat-file store
	path := filepath.Join(t.TempDir(), "ledger.csv")
	store, err := csvfile.New(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), sample()))
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)

	// WHEN
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sample()))

	// THEN
	assert.Equal(t, string(onDisk), buf.String())
}

func TestWriteXLSX_ReimportsCleanly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sample()))

	rows, err := importer.ParseXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	valid, errs := importer.Validate(rows)
	assert.Empty(t, errs)
	require.Len(t, valid, 2)
	for i, want := range sample() {
		got, err := valid[i].Coerce()
		require.NoError(t, err)
		assert.Equal(t, want.Date, got.Date)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, ledger.FormatAmount(want.Amount), ledger.FormatAmount(got.Amount))
	}
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	rows, err := importer.ParseXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
