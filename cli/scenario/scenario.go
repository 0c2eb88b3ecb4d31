package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/nspcc-dev/arcgo/cli/options"
	"github.com/nspcc-dev/arcgo/pkg/scenario"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"
)

var errNoScenarios = errors.New("no scenarios given, specify files or built-in names or use --all")

// NewCommands returns 'scenario' command.
func NewCommands() []cli.Command {
	runFlags := append([]cli.Flag{
		cli.BoolFlag{
			Name:  "all, a",
			Usage: "run all built-in scenarios",
		},
		cli.BoolFlag{
			Name:  "yaml",
			Usage: "print reports in YAML",
		},
	}, options.Common...)
	return []cli.Command{{
		Name:  "scenario",
		Usage: "run scripted lifecycle scenarios",
		Subcommands: []cli.Command{
			{
				Name:      "run",
				Usage:     "run scenarios from files or built-in ones",
				UsageText: "arcgo scenario run [--all] [--yaml] [--config-file file] [<file|name>...]",
				Description: `Runs every given scenario against a fresh lifecycle manager and
   prints its report. Arguments that are not existing files are treated as
   built-in scenario names, see 'arcgo scenario list'.`,
				Action: runScenarios,
				Flags:  runFlags,
			},
			{
				Name:   "list",
				Usage:  "list built-in scenarios",
				Action: listScenarios,
			},
		},
	}}
}

func listScenarios(ctx *cli.Context) error {
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	for _, name := range scenario.Builtins() {
		s, err := scenario.Builtin(name)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		fmt.Fprintf(w, "%s\t%s\n", name, firstLine(s.Description))
	}
	return w.Flush()
}

func runScenarios(ctx *cli.Context) error {
	names := ctx.Args()
	if ctx.Bool("all") {
		names = append(scenario.Builtins(), names...)
	}
	if len(names) == 0 {
		return cli.NewExitError(errNoScenarios, 1)
	}
	cfg, log, err := options.NewLogger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var (
		runner = scenario.NewRunner(cfg.Manager, log)
		failed int
	)
	for _, name := range names {
		s, err := loadScenario(name)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		rep, err := runner.Run(s)
		if ctx.Bool("yaml") {
			err = printYAML(ctx.App.Writer, rep, err)
		} else {
			printReport(ctx.App.Writer, rep, err)
		}
		if err != nil {
			failed++
		}
	}
	if failed != 0 {
		return cli.NewExitError(fmt.Errorf("%d of %d scenarios failed", failed, len(names)), 1)
	}
	return nil
}

func loadScenario(name string) (*scenario.Scenario, error) {
	if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
		return scenario.LoadFile(name)
	}
	return scenario.Builtin(name)
}

func printReport(w io.Writer, rep *scenario.Report, runErr error) {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "Scenario:\t%s\n", rep.Name)
	fmt.Fprintf(tw, "Run:\t%s\n", rep.RunID)
	fmt.Fprintf(tw, "Steps:\t%d\n", rep.Steps)
	fmt.Fprintf(tw, "Finalized:\t%s\n", joinOrNone(rep.Finalized))
	fmt.Fprintf(tw, "Leaked:\t%s\n", joinOrNone(rep.Leaked))
	fmt.Fprintf(tw, "Faults:\t%d\n", rep.Faults)
	fmt.Fprintf(tw, "Stats:\tallocated=%d finalized=%d live=%d weak_nulled=%d faults=%d\n",
		rep.Stats.Allocated, rep.Stats.Finalized, rep.Stats.Live, rep.Stats.WeakNulled, rep.Stats.Faults)
	if runErr != nil {
		fmt.Fprintf(tw, "Result:\tFAILED: %s\n", runErr)
	} else {
		fmt.Fprintf(tw, "Result:\tOK\n")
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
}

type yamlReport struct {
	scenario.Report `yaml:",inline"`
	Error            string `yaml:"error,omitempty"`
}

func printYAML(w io.Writer, rep *scenario.Report, runErr error) error {
	r := yamlReport{Report: *rep}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	fmt.Fprintln(w, "---")
	if err := enc.Encode(r); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return runErr
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i+1]
	}
	return s
}
