package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/google/subcommands"
	"github.com/warp/expense-ledger/analysis"
	"github.com/warp/expense-ledger/ledger"
)

var (
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
	titleColor = color.New(color.FgCyan, color.Bold)
)

var errRecordNotFound = errors.New("record not found")

// recordFlags are the editable fields shared by add and update.
type recordFlags struct {
	section     string
	date        string
	category    string
	description string
	amount      string
}

func (r *recordFlags) set(f *flag.FlagSet) {
	sectionFlag(f, &r.section)
	f.StringVar(&r.date, "d", "", "Date of the expense (YYYY-MM-DD). Defaults to today.")
	f.StringVar(&r.category, "c", "", "Category.")
	f.StringVar(&r.description, "m", "", "Item or description.")
	f.StringVar(&r.amount, "a", "", "Amount, strictly positive.")
}

func (r *recordFlags) candidate(today ledger.Date) ledger.Candidate {
	date := r.date
	if date == "" {
		date = today.String()
	}
	return ledger.Candidate{Date: date, Category: r.category, Description: r.description, Amount: r.amount}
}

// =============================================================================
// add
// =============================================================================

type addCmd struct {
	env *Env
	recordFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add an expense to a section" }
func (*addCmd) Usage() string {
	return `ledger add [-s <section>] [-d <date>] -c <category> -m <description> -a <amount>

  Appends a new expense record. The id is assigned automatically.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) { c.recordFlags.set(f) }

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rec, err := c.candidate(c.env.today()).Coerce()
	if err != nil {
		return c.env.fail("validating record", err)
	}

	s, err := c.env.open(ctx, c.section)
	if err != nil {
		return c.env.fail("opening ledger", err)
	}
	defer s.Close()

	added, err := s.mgr.Add(ctx, rec.Date, rec.Category, rec.Description, rec.Amount)
	if err != nil {
		return c.env.fail("adding record", err)
	}
	okColor.Fprintf(c.env.Out, "Added record #%d (%s %s %s)\n",
		added.ID, added.Date, added.Category, ledger.FormatAmount(added.Amount))
	return subcommands.ExitSuccess
}

// =============================================================================
// update
// =============================================================================

type updateCmd struct {
	env *Env
	id  int
	recordFlags
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "replace the fields of an existing expense" }
func (*updateCmd) Usage() string {
	return `ledger update -id <id> [-s <section>] [-d <date>] [-c <category>] [-m <description>] [-a <amount>]

  Rewrites the record with the given id. Omitted fields keep their current value.
`
}

func (c *updateCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.id, "id", 0, "Id of the record to update.")
	c.recordFlags.set(f)
}

func (c *updateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		c.env.errorf("Error: -id is required")
		return subcommands.ExitUsageError
	}

	s, err := c.env.open(ctx, c.section)
	if err != nil {
		return c.env.fail("opening ledger", err)
	}
	defer s.Close()

	current, ok := s.mgr.Record(c.id)
	if !ok {
		return c.env.fail("updating record", fmt.Errorf("%w: id %d", errRecordNotFound, c.id))
	}
	cand := ledger.Candidate{
		Date:        pick(c.date, current.Date.String()),
		Category:    pick(c.category, current.Category),
		Description: pick(c.description, current.Description),
		Amount:      pick(c.amount, ledger.FormatAmount(current.Amount)),
	}
	rec, err := cand.Coerce()
	if err != nil {
		return c.env.fail("validating record", err)
	}

	if _, err := s.mgr.Update(ctx, c.id, rec.Date, rec.Category, rec.Description, rec.Amount); err != nil {
		return c.env.fail("updating record", err)
	}
	okColor.Fprintf(c.env.Out, "Updated record #%d\n", c.id)
	return subcommands.ExitSuccess
}

func pick(flagValue, current string) string {
	if flagValue != "" {
		return flagValue
	}
	return current
}

// =============================================================================
// delete
// =============================================================================

type deleteCmd struct {
	env     *Env
	section string
	id      int
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete an expense" }
func (*deleteCmd) Usage() string {
	return `ledger delete -id <id> [-s <section>]
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	sectionFlag(f, &c.section)
	f.IntVar(&c.id, "id", 0, "Id of the record to delete.")
}

func (c *deleteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		c.env.errorf("Error: -id is required")
		return subcommands.ExitUsageError
	}
	s, err := c.env.open(ctx, c.section)
	if err != nil {
		return c.env.fail("opening ledger", err)
	}
	defer s.Close()

	ok, err := s.mgr.Delete(ctx, c.id)
	if err != nil {
		return c.env.fail("deleting record", err)
	}
	if !ok {
		return c.env.fail("deleting record", fmt.Errorf("%w: id %d", errRecordNotFound, c.id))
	}
	okColor.Fprintf(c.env.Out, "Deleted record #%d\n", c.id)
	return subcommands.ExitSuccess
}

// =============================================================================
// list
// =============================================================================

type listCmd struct {
	env     *Env
	section string
	month   string
	all     bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list the expenses of a month" }
func (*listCmd) Usage() string {
	return `ledger list [-s <section>] [-month YYYY-MM | -all]

  Lists records in store order. Defaults to the current month.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	sectionFlag(f, &c.section)
	f.StringVar(&c.month, "month", "", "Month to list (YYYY-MM). Defaults to the current month.")
	f.BoolVar(&c.all, "all", false, "List every record regardless of date.")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := c.env.open(ctx, c.section)
	if err != nil {
		return c.env.fail("opening ledger", err)
	}
	defer s.Close()

	var records []ledger.Record
	if c.all {
		records = s.mgr.Records()
	} else {
		year, month, err := parseMonth(pick(c.month, c.env.currentMonth()))
		if err != nil {
			c.env.errorf("Error: %v", err)
			return subcommands.ExitUsageError
		}
		records = s.mgr.FilterByMonth(year, month)
	}

	if len(records) == 0 {
		warnColor.Fprintln(c.env.Out, "No records.")
		return subcommands.ExitSuccess
	}

	tw := tabwriter.NewWriter(c.env.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDate\tCategory\tDescription\tAmount\t")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", r.ID, r.Date, r.Category, r.Description, analysis.FormatMoney(r.Amount))
	}
	tw.Flush()
	return subcommands.ExitSuccess
}
