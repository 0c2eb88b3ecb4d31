package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/arcgo/cli/demo"
	"github.com/nspcc-dev/arcgo/cli/scenario"
	"github.com/nspcc-dev/arcgo/cli/shell"
	"github.com/nspcc-dev/arcgo/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "arcgo\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an arcgo instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "arcgo"
	ctl.Version = config.Version
	ctl.Usage = "Reference counted object lifecycle manager playground"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, scenario.NewCommands()...)
	ctl.Commands = append(ctl.Commands, demo.NewCommands()...)
	ctl.Commands = append(ctl.Commands, shell.NewCommands()...)
	return ctl
}
