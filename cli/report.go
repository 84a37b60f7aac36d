package cli

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/warp/expense-ledger/analysis"
	"github.com/warp/expense-ledger/ledger"
)

// =============================================================================
// sections
// =============================================================================

type sectionsCmd struct {
	env *Env
}

func (*sectionsCmd) Name() string     { return "sections" }
func (*sectionsCmd) Synopsis() string { return "list the ledger sections" }
func (*sectionsCmd) Usage() string {
	return `ledger sections
`
}

func (*sectionsCmd) SetFlags(*flag.FlagSet) {}

func (c *sectionsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	for _, s := range ledger.Sections() {
		fmt.Fprintf(c.env.Out, "%-10s %s %s\n", s.Key, s.Emoji, s.Label)
	}
	return subcommands.ExitSuccess
}

// =============================================================================
// categories
// =============================================================================

type categoriesCmd struct {
	env     *Env
	section string
	add     string
}

func (*categoriesCmd) Name() string     { return "categories" }
func (*categoriesCmd) Synopsis() string { return "list the known categories of a section" }
func (*categoriesCmd) Usage() string {
	return `ledger categories [-s <section>] [-add <name>]

  Prints the categories seen in the section's records, or the defaults
  when it has none.
  With -add, the name is included in this listing only; categories are
  remembered once a record uses them.
`
}

func (c *categoriesCmd) SetFlags(f *flag.FlagSet) {
	sectionFlag(f, &c.section)
	f.StringVar(&c.add, "add", "", "Category to add to the listing.")
}

func (c *categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := c.env.open(ctx, c.section)
	if err != nil {
		return c.env.fail("opening ledger", err)
	}
	defer s.Close()

	s.mgr.AddCategory(c.add)
	for _, name := range s.mgr.Categories() {
		fmt.Fprintln(c.env.Out, name)
	}
	return subcommands.ExitSuccess
}

// =============================================================================
// summary
// =============================================================================

type summaryCmd struct {
	env     *Env
	section string
	month   string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print the monthly analysis of a section" }
func (*summaryCmd) Usage() string {
	return `ledger summary [-s <section>] [-month YYYY-MM]

  Prints total, days recorded, average per day and the top categories.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	sectionFlag(f, &c.section)
	f.StringVar(&c.month, "month", "", "Month to analyse (YYYY-MM). Defaults to the current month.")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	var buf bytes.Buffer
	if err := analysis.WriteReport(&buf, s.mgr.Section(), year, month, s.mgr.FilterByMonth(year, month)); err != nil {
		return c.env.fail("writing report", err)
	}

	// Title line highlighted, the rest as is.
	title, rest, _ := strings.Cut(buf.String(), "\n")
	titleColor.Fprintln(c.env.Out, title)
	fmt.Fprint(c.env.Out, rest)
	return subcommands.ExitSuccess
}
