package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/expense-ledger/ledger"
)

func sampleRecords() []ledger.Record {
	return []ledger.Record{
		{ID: 3, Date: ledger.NewDate(2024, time.March, 2), Category: "Food", Description: "Lunch, with \"friends\"", Amount: decimal.RequireFromString("12.5")},
		{ID: 1, Date: ledger.NewDate(2024, time.January, 9), Category: "Rent", Description: "January", Amount: decimal.RequireFromString("950")},
		{ID: 8, Date: ledger.NewDate(2023, time.December, 31), Category: "Misc", Description: "multi\nline", Amount: decimal.RequireFromString("0.07")},
	}
}

func assertSameRecords(t *testing.T, want, got []ledger.Record) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID, "row %d id", i)
		assert.True(t, want[i].Date.Equal(got[i].Date), "row %d date", i)
		assert.Equal(t, want[i].Category, got[i].Category, "row %d category", i)
		assert.Equal(t, want[i].Description, got[i].Description, "row %d description", i)
		assert.Equal(t, ledger.FormatAmount(want[i].Amount), ledger.FormatAmount(got[i].Amount), "row %d amount", i)
	}
}

func TestNew_CreatesHeaderOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "personal_expenses_alice.csv")

	s, err := New(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,date,category,description,amount\n", string(data))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "ledger.csv"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleRecords()))
	first, err := s.Load(ctx)
	require.NoError(t, err)
	assertSameRecords(t, sampleRecords(), first)

	// Saving what was loaded reproduces the same bytes.
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, first))
	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestSave_TwoDecimalAmounts(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "ledger.csv"))
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), []ledger.Record{
		{ID: 1, Date: ledger.NewDate(2024, 1, 1), Category: "Food", Description: "x", Amount: decimal.RequireFromString("7")},
	}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "id,date,category,description,amount\n1,2024-01-01,Food,x,7.00\n", string(data))
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "ledger.csv"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(context.Background(), sampleRecords()))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ledger.csv", entries[0].Name())
}

func TestSave_KeepsFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	s, err := New(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm(), "new files are not private temp files")

	// GIVEN: The owner changed the mode
	require.NoError(t, os.Chmod(path, 0o640))

	// WHEN: The ledger is rewritten
	require.NoError(t, s.Save(context.Background(), sampleRecords()))

	// THEN: The mode survives the rename
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestSave_MissingDirectoryFails(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "sub", "ledger.csv"))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "sub")))

	err = s.Save(context.Background(), sampleRecords())
	assert.Error(t, err)
}

func TestLoad_SkipsMalformedRows(t *testing.T) {
	// GIVEN: A file mixing good rows with every kind of bad row
	path := filepath.Join(t.TempDir(), "ledger.csv")
	content := "id,date,category,description,amount\n" +
		"1,2024-01-01,Food,ok,1.00\n" +
		"2,2024-01-02,Food,bad amount,few\n" +
		"3,2024-02-30,Food,bad date,3.00\n" +
		"x,2024-01-03,Food,bad id,3.00\n" +
		"4,2024-01-04,Food\n" +
		"5,2024-01-05,Food,extra,5.00,zzz\n" +
		"6,2024-01-06,Travel,ok too,6.50\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	s := &Store{path: path}

	// WHEN
	got, err := s.Load(context.Background())

	// THEN
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, 6, got[1].ID)
	assert.Equal(t, "6.50", ledger.FormatAmount(got[1].Amount))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := &Store{path: filepath.Join(t.TempDir(), "absent.csv")}

	got, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBackend_OpenPerSectionAndUser(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend(dir)

	rs, err := b.Open(ledger.InfoFor(ledger.SectionFamily), "alice")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "family_expenses_alice.csv"), rs.(*Store).Path())

	_, err = os.Stat(filepath.Join(dir, "family_expenses_alice.csv"))
	assert.NoError(t, err)
}

func TestBackend_RejectsUnsafeUsers(t *testing.T) {
	b := NewBackend(t.TempDir())
	for _, user := range []string{"", "  ", "../etc", "a/b", `a\b`} {
		_, err := b.Open(ledger.InfoFor(ledger.SectionPersonal), user)
		assert.ErrorIs(t, err, ErrInvalidUser, user)
	}
}

func TestManagerOverFile_Persists(t *testing.T) {
	// GIVEN: A manager over a real file
	dir := t.TempDir()
	reg := ledger.NewRegistry(NewBackend(dir), "alice")
	ctx := context.Background()

	mgr, err := reg.Manager(ctx, ledger.SectionPersonal)
	require.NoError(t, err)
	_, err = mgr.Add(ctx, ledger.NewDate(2024, 5, 1), "Food", "Bread", decimal.RequireFromString("2.4"))
	require.NoError(t, err)
	_, err = mgr.Add(ctx, ledger.NewDate(2024, 5, 2), "Food", "Milk", decimal.RequireFromString("1.1"))
	require.NoError(t, err)
	_, err = mgr.Delete(ctx, 2)
	require.NoError(t, err)

	// WHEN: A new registry reloads from disk
	again, err := ledger.NewRegistry(NewBackend(dir), "alice").Manager(ctx, ledger.SectionPersonal)
	require.NoError(t, err)

	// THEN
	got := again.Records()
	require.Len(t, got, 1)
	assert.Equal(t, "Bread", got[0].Description)
	assert.Equal(t, "2.40", ledger.FormatAmount(got[0].Amount))
	assert.Equal(t, 2, again.NextID(), "id 2 was only in memory of the old manager")
}
