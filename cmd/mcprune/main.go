// mcprune is a tool for removing never-visited chunks from a Minecraft
// world's region files.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/bwkimmel/mcprune/internal/commands"
	"github.com/bwkimmel/mcprune/internal/mclog"
)

var logLevel = flag.String("log_level", "info", "Minimum log level to print: debug, info, warn, or error.")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&commands.Prune{}, "")

	flag.Parse()
	mclog.SetMinLevelFromString(*logLevel)

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
