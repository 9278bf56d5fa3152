// Manage the portfolio from the command line.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var commands = []subcommands.Command{
	&listCmd{},
	&addCmd{},
	&setCmd{},
	&removeCmd{},
	&clearCmd{},
	&refreshCmd{},
	&exportCmd{},
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "portfolio")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
