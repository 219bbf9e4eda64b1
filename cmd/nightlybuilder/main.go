package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/nightlybuilder/cmd/nightlybuilder/commands"
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/nightlybuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}
	parser := kong.Parse(cli,
		kong.Name("nightlybuilder"),
		kong.Description("Build Android targets and ship the results to a mirror and/or an upload host."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
		kong.Bind(global),
	)
	if err := parser.Run(global, cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
	}
}
