package cli

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/expense-ledger/importer"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type harness struct {
	t      *testing.T
	dir    string
	config string
	out    bytes.Buffer
	err    bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "ledger.yaml")
	yaml := fmt.Sprintf(`storage:
  backend: csv
  dir: %s
  sqlite_path: %s
ledger:
  user: alice
import:
  preview_limit: 2
`, filepath.Join(dir, "data"), filepath.Join(dir, "data", "ledger.db"))
	require.NoError(t, os.WriteFile(config, []byte(yaml), 0o644))
	return &harness{t: t, dir: dir, config: config}
}

// run executes one command line and returns its status. Output buffers are
// reset first.
func (h *harness) run(args ...string) subcommands.ExitStatus {
	h.t.Helper()
	h.out.Reset()
	h.err.Reset()

	env := &Env{
		Out: &h.out,
		Err: &h.err,
		now: func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) },
	}
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	env.RegisterFlags(fs)
	c := subcommands.NewCommander(fs, "ledger")
	Register(c, env)

	require.NoError(h.t, fs.Parse(append([]string{"-config", h.config}, args...)))
	return c.Execute(context.Background())
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	status := h.run(args...)
	require.Equal(h.t, subcommands.ExitSuccess, status, "stderr: %s", h.err.String())
	return h.out.String()
}

func TestSections(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("sections")

	assert.Contains(t, out, "personal")
	assert.Contains(t, out, "family")
	assert.Contains(t, out, "business")
}

func TestAddAndList(t *testing.T) {
	h := newHarness(t)

	// GIVEN: Two expenses, one defaulting to today
	out := h.mustRun("add", "-c", "Food", "-m", "Soup", "-a", "12.5")
	assert.Contains(t, out, "Added record #1 (2024-03-15 Food 12.50)")
	h.mustRun("add", "-d", "2024-02-01", "-c", "Rent", "-m", "February", "-a", "900")

	// WHEN: The current month is listed
	out = h.mustRun("list")

	// THEN: Only the March record shows
	assert.Contains(t, out, "Soup")
	assert.NotContains(t, out, "February")

	out = h.mustRun("list", "-all")
	assert.Contains(t, out, "February")
	assert.Contains(t, out, "900.00")

	_, err := os.Stat(filepath.Join(h.dir, "data", "personal_expenses_alice.csv"))
	assert.NoError(t, err)
}

func TestAdd_Invalid(t *testing.T) {
	h := newHarness(t)

	status := h.run("add", "-c", "Food", "-m", "Soup", "-a", "-3")

	assert.Equal(t, subcommands.ExitUsageError, status)
	assert.Contains(t, h.err.String(), "amount must be positive")
}

func TestAdd_UnknownSection(t *testing.T) {
	h := newHarness(t)

	status := h.run("add", "-s", "holiday", "-c", "Food", "-m", "Soup", "-a", "3")

	assert.Equal(t, subcommands.ExitUsageError, status)
	assert.Contains(t, h.err.String(), "unknown section")
}

func TestUserFlag(t *testing.T) {
	h := newHarness(t)

	h.mustRun("-user", "bob", "add", "-s", "family", "-c", "Food", "-m", "Milk", "-a", "2")

	_, err := os.Stat(filepath.Join(h.dir, "data", "family_expenses_bob.csv"))
	assert.NoError(t, err)
	assert.Contains(t, h.mustRun("-user", "bob", "list", "-s", "family"), "Milk")
	assert.Contains(t, h.mustRun("list", "-s", "family"), "No records.")
}

func TestUpdate_KeepsOmittedFields(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "-c", "Food", "-m", "Soup", "-a", "4")

	out := h.mustRun("update", "-id", "1", "-a", "6")
	assert.Contains(t, out, "Updated record #1")

	out = h.mustRun("list")
	assert.Contains(t, out, "Soup")
	assert.Contains(t, out, "6.00")
	assert.NotContains(t, out, "4.00")
}

func TestUpdateAndDelete_Missing(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, subcommands.ExitUsageError, h.run("update", "-a", "3"))
	assert.Equal(t, subcommands.ExitFailure, h.run("update", "-id", "9", "-a", "3"))
	assert.Contains(t, h.err.String(), "record not found")
	assert.Equal(t, subcommands.ExitFailure, h.run("delete", "-id", "9"))
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "-c", "Food", "-m", "Soup", "-a", "4")
	h.mustRun("add", "-c", "Food", "-m", "Bread", "-a", "2")

	assert.Contains(t, h.mustRun("delete", "-id", "1"), "Deleted record #1")

	out := h.mustRun("list")
	assert.NotContains(t, out, "Soup")
	assert.Contains(t, out, "Bread")
}

func TestCategories(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "-c", "Travel", "-m", "Train", "-a", "30")

	out := h.mustRun("categories", "-add", "Gifts")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines, "Travel")
	assert.Contains(t, lines, "Gifts")
	assert.NotContains(t, lines, "Food")

	assert.Contains(t, h.mustRun("categories", "-s", "business"), "Utilities")
}

func TestSummary(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "-d", "2024-03-01", "-c", "Travel", "-m", "Flight", "-a", "1200")
	h.mustRun("add", "-d", "2024-03-02", "-c", "Food", "-m", "Dinner", "-a", "300")

	out := h.mustRun("summary", "-month", "2024-03")

	assert.Contains(t, out, "Personal - MONTHLY ANALYSIS")
	assert.Contains(t, out, "Total Spent:   1,500.00")
	assert.Contains(t, out, "Days Recorded: 2")
	assert.Contains(t, out, "Travel                   1,200.00 (  80.0%)")

	out = h.mustRun("summary", "-month", "2023-12")
	assert.Contains(t, out, "No expenses recorded for this month.")

	assert.Equal(t, subcommands.ExitUsageError, h.run("summary", "-month", "March"))
}

func TestImport(t *testing.T) {
	h := newHarness(t)
	src := filepath.Join(h.dir, "bank.csv")
	require.NoError(t, os.WriteFile(src, []byte(
		"Date,Category,Item,Cost\n"+
			"2024-03-01,Food,Tea,3.5\n"+
			"2024-13-01,Food,Cake,2\n"+
			"2024-03-02,,Coffee,2\n"+
			"2024-03-03,Food,Juice,abc\n"+
			"2024-03-04,Food,Bun,1\n"), 0o644))

	// WHEN: The file is checked without -commit
	out := h.mustRun("import", src)

	// THEN: Errors are capped at the preview limit and nothing is written
	assert.Contains(t, out, "5 rows: 2 valid, 3 invalid")
	assert.Contains(t, out, `Row 2: Invalid date format - "2024-13-01"`)
	assert.Contains(t, out, "... and 1 more")
	assert.Contains(t, out, "Dry run")
	assert.Contains(t, h.mustRun("list"), "No records.")

	// WHEN: Committed
	out = h.mustRun("import", "-commit", src)

	// THEN: The valid rows are appended
	assert.Contains(t, out, "Imported 2 records into Personal")
	out = h.mustRun("list")
	assert.Contains(t, out, "Tea")
	assert.Contains(t, out, "Bun")
}

func TestImport_Errors(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, subcommands.ExitUsageError, h.run("import"))
	assert.Equal(t, subcommands.ExitFailure, h.run("import", filepath.Join(h.dir, "missing.csv")))

	empty := filepath.Join(h.dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.Equal(t, subcommands.ExitFailure, h.run("import", empty))
	assert.Contains(t, h.err.String(), "Error reading file")
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "-c", "Food", "-m", "Soup", "-a", "4")
	h.mustRun("add", "-d", "2024-02-10", "-c", "Food", "-m", "Old", "-a", "9")
	outDir := t.TempDir()

	for _, format := range []string{"csv", "xlsx"} {
		out := h.mustRun("export", "-format", format, "-o", outDir)

		path := filepath.Join(outDir, "personal_2024_03_expenses."+format)
		assert.Contains(t, out, "Exported 1 records to "+path)

		rows, err := importer.Parse(path)
		require.NoError(t, err, format)
		require.Len(t, rows, 1, format)
		assert.Equal(t, "Soup", rows[0].Description, format)
	}

	assert.Equal(t, subcommands.ExitUsageError, h.run("export", "-format", "pdf"))
}
