// Package cli implements the ledger command line as google/subcommands commands.
//
// Every command works on one section of one user's ledger. The section is
// chosen with -s (default personal); the user and storage come from the
// config file, overridable with the global -config and -user flags.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/warp/expense-ledger/config"
	"github.com/warp/expense-ledger/ledger"
	"github.com/warp/expense-ledger/store"
)

// Env is the state shared by all commands.
type Env struct {
	ConfigPath string
	User       string
	Out        io.Writer
	Err        io.Writer

	now func() time.Time
}

// NewEnv returns an Env writing to stdout and stderr.
func NewEnv() *Env {
	return &Env{Out: os.Stdout, Err: os.Stderr, now: time.Now}
}

// RegisterFlags adds the global flags to fs.
func (e *Env) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&e.ConfigPath, "config", "", "Path to the YAML config file. Defaults to ./ledger.yaml when present.")
	fs.StringVar(&e.User, "user", "", "Ledger owner. Overrides ledger.user from the config.")
}

// Register the subcommands.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(&sectionsCmd{env: env}, "ledger")
	c.Register(&categoriesCmd{env: env}, "ledger")

	c.Register(&addCmd{env: env}, "records")
	c.Register(&updateCmd{env: env}, "records")
	c.Register(&deleteCmd{env: env}, "records")
	c.Register(&listCmd{env: env}, "records")

	c.Register(&summaryCmd{env: env}, "reports")

	c.Register(&importCmd{env: env}, "files")
	c.Register(&exportCmd{env: env}, "files")
}

// session is one opened section ledger.
type session struct {
	cfg    *config.Config
	mgr    *ledger.Manager
	opened *store.Opened
}

func (s *session) Close() error { return s.opened.Close() }

// open loads the config and the Manager of section.
func (e *Env) open(ctx context.Context, section string) (*session, error) {
	key, err := ledger.ParseSection(section)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(e.ConfigPath)
	if err != nil {
		return nil, err
	}
	user := cfg.Ledger.User
	if e.User != "" {
		user = e.User
	}

	opened, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	mgr, err := ledger.NewRegistry(opened.Backend, user).Manager(ctx, key, opened.ManagerOptions(cfg)...)
	if err != nil {
		opened.Close()
		return nil, err
	}
	return &session{cfg: cfg, mgr: mgr, opened: opened}, nil
}

func (e *Env) errorf(format string, args ...any) {
	fmt.Fprintf(e.Err, format+"\n", args...)
}

// fail reports err and maps it to an exit status.
func (e *Env) fail(what string, err error) subcommands.ExitStatus {
	errColor.Fprintf(e.Err, "Error %s: %v\n", what, err)
	if ledger.IsClientError(err) {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}

// monthLayout is the -m flag format.
const monthLayout = "2006-01"

func (e *Env) currentMonth() string {
	return e.clock()().Format(monthLayout)
}

func (e *Env) today() ledger.Date {
	t := e.clock()()
	return ledger.NewDate(t.Year(), t.Month(), t.Day())
}

func (e *Env) clock() func() time.Time {
	if e.now == nil {
		return time.Now
	}
	return e.now
}

func parseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	return t.Year(), t.Month(), nil
}

func sectionFlag(f *flag.FlagSet, p *string) {
	f.StringVar(p, "s", string(ledger.DefaultSection), "Section: personal, family or business.")
}
