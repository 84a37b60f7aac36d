// Command ledger manages the personal, family and business expense ledgers
// from the terminal.
//
//	ledger add -c Food -m "Lunch" -a 12.50
//	ledger -user bob list -s family -month 2024-03
//	ledger import -commit statement.xlsx
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/warp/expense-ledger/cli"
	"github.com/warp/expense-ledger/pkg/logging"
)

func main() {
	logging.Setup()

	env := cli.NewEnv()
	env.RegisterFlags(flag.CommandLine)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cli.Register(commander, env)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
