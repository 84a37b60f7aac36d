package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/warp/expense-ledger/exporter"
	"github.com/warp/expense-ledger/importer"
)

// =============================================================================
// import
// =============================================================================

type importCmd struct {
	env     *Env
	section string
	commit  bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "validate and import expenses from a CSV or XLSX file" }
func (*importCmd) Usage() string {
	return `ledger import [-s <section>] [-commit] <file>

  Reads the file, reports every invalid row and, with -commit, appends the
  valid rows to the section. Without -commit nothing is written.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	sectionFlag(f, &c.section)
	f.BoolVar(&c.commit, "commit", false, "Append the valid rows. Otherwise only report.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		c.env.errorf("Error: expected exactly one file to import")
		return subcommands.ExitUsageError
	}
	path := f.Arg(0)

	s, err := c.env.open(ctx, c.section)
	if err != nil {
		return c.env.fail("opening ledger", err)
	}
	defer s.Close()

	rows, err := importer.Parse(path)
	if err != nil {
		return c.env.fail("reading file", err)
	}
	valid, invalid := importer.Validate(rows)

	fmt.Fprintf(c.env.Out, "%d rows: %d valid, %d invalid\n", len(rows), len(valid), len(invalid))
	for _, msg := range importer.Messages(invalid, s.cfg.Import.PreviewLimit) {
		warnColor.Fprintln(c.env.Out, "  "+msg)
	}

	if !c.commit {
		if len(valid) > 0 {
			fmt.Fprintln(c.env.Out, "Dry run. Re-run with -commit to import the valid rows.")
		}
		return subcommands.ExitSuccess
	}
	if len(valid) == 0 {
		warnColor.Fprintln(c.env.Out, "Nothing to import.")
		return subcommands.ExitSuccess
	}

	res, err := s.mgr.BulkAdd(ctx, valid)
	if err != nil {
		return c.env.fail("importing", err)
	}
	okColor.Fprintf(c.env.Out, "Imported %d records into %s\n", res.Added, s.mgr.Section().Label)
	return subcommands.ExitSuccess
}

// =============================================================================
// export
// =============================================================================

type exportCmd struct {
	env     *Env
	section string
	month   string
	format  string
	outDir  string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a month of expenses to CSV or XLSX" }
func (*exportCmd) Usage() string {
	return `ledger export [-s <section>] [-month YYYY-MM] [-format csv|xlsx] [-o <dir>]

  Writes <section>_<YYYY>_<MM>_expenses.<format> into the output directory.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	sectionFlag(f, &c.section)
	f.StringVar(&c.month, "month", "", "Month to export (YYYY-MM). Defaults to the current month.")
	f.StringVar(&c.format, "format", string(exporter.FormatCSV), "Output format: csv or xlsx.")
	f.StringVar(&c.outDir, "o", ".", "Output directory.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	format, err := exporter.ParseFormat(c.format)
	if err != nil {
		c.env.errorf("Error: %v", err)
		return subcommands.ExitUsageError
	}
	year, month, err := parseMonth(pick(c.month, c.env.currentMonth()))
	if err != nil {
		c.env.errorf("Error: %v", err)
		return subcommands.ExitUsageError
	}

	s, err := c.env.open(ctx, c.section)
	if err != nil {
		return c.env.fail("opening ledger", err)
	}
	defer s.Close()

	records := s.mgr.FilterByMonth(year, month)
	path := filepath.Join(c.outDir, exporter.FileName(s.mgr.Section().Key, year, month, format))

	out, err := os.Create(path)
	if err != nil {
		return c.env.fail("creating export file", err)
	}
	if err := exporter.Write(out, format, records); err != nil {
		out.Close()
		return c.env.fail("writing export", err)
	}
	if err := out.Close(); err != nil {
		return c.env.fail("writing export", err)
	}

	okColor.Fprintf(c.env.Out, "Exported %d records to %s\n", len(records), path)
	return subcommands.ExitSuccess
}
