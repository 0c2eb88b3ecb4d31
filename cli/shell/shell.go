package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/nspcc-dev/arcgo/cli/options"
	"github.com/nspcc-dev/arcgo/pkg/arc"
	"github.com/nspcc-dev/arcgo/pkg/config"
	"github.com/nspcc-dev/arcgo/pkg/scenario"
	"github.com/nspcc-dev/arcgo/pkg/services/metrics"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

const (
	sessionKey          = "session"
	exitFuncKey         = "exitFunc"
	exitedKey           = "exited"
	readlineInstanceKey = "readlineKey"
	printLogoKey        = "printLogoKey"
)

var commands = []cli.Command{
	{
		Name:        "exit",
		Usage:       "Exit the shell",
		Description: "Exit the shell",
		Action:      handleExit,
	},
	{
		Name:      "alloc",
		Usage:     "Allocate a new object",
		UsageText: `alloc <name> [<label>]`,
		Description: `alloc <name> [<label>]
<name> is mandatory, it's used to refer to the object in other commands,
<label> is an optional description, example:
> alloc sabby "Employee Sabby"`,
		Action: handleAlloc,
	},
	{
		Name:      "slot",
		Usage:     "Create a new local slot",
		UsageText: `slot <name> <kind> [<target>]`,
		Description: `slot <name> <kind> [<target>]
<kind> is one of 'strong', 'weak' or 'unowned', optional <target> is an
object to assign to the new slot, example:
> slot s1 strong sabby`,
		Action: handleSlot,
	},
	{
		Name:      "field",
		Usage:     "Create a new field slot of an object",
		UsageText: `field <owner> <name> <kind> [<target>]`,
		Description: `field <owner> <name> <kind> [<target>]
Field slots are released when their <owner> is finalized, example:
> field sabby sabby.colleague weak cathy`,
		Action: handleField,
	},
	{
		Name:      "assign",
		Usage:     "Assign an object to a slot",
		UsageText: `assign <slot> <target>`,
		Action:    handleAssign,
	},
	{
		Name:      "release",
		Usage:     "Release a slot",
		UsageText: `release <slot>`,
		Action:    handleRelease,
	},
	{
		Name:      "read",
		Usage:     "Show the object referenced by a slot",
		UsageText: `read <slot>`,
		Action:    handleRead,
	},
	{
		Name:      "access",
		Usage:     "Access the object through a slot",
		UsageText: `access <slot>`,
		Description: `access <slot>
Accessing a finalized object through an unowned slot is a fault, it's
reported and the shell continues.`,
		Action: handleAccess,
	},
	{
		Name:      "info",
		Usage:     "Show object state",
		UsageText: `info <object>`,
		Action:    handleInfo,
	},
	{
		Name:   "live",
		Usage:  "List alive objects",
		Action: handleLive,
	},
	{
		Name:   "leaks",
		Usage:  "List alive objects unreachable from local slots",
		Action: handleLeaks,
	},
	{
		Name:   "stats",
		Usage:  "Show manager counters",
		Action: handleStats,
	},
}

var completer *readline.PrefixCompleter

func init() {
	var pcItems []readline.PrefixCompleterInterface
	for _, c := range commands {
		if !c.Hidden {
			pcItems = append(pcItems, readline.PcItem(c.Name))
		}
	}
	completer = readline.NewPrefixCompleter(pcItems...)
}

// Various errors.
var (
	ErrMissingParameter = errors.New("missing argument")
	ErrInvalidParameter = errors.New("can't parse argument")
)

// NewCommands returns 'shell' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:   "shell",
		Usage:  "start an interactive lifecycle manager shell",
		Action: startShell,
		Flags:  options.Common,
	}}
}

func startShell(ctx *cli.Context) error {
	cfg, log, err := options.NewLogger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	prom := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log)
	prom.Start()
	defer prom.ShutDown()

	sh, err := NewWithConfig(true, os.Exit, &readline.Config{
		Prompt: "\033[32marc>\033[0m ",
	}, cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := sh.Run(); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

// Shell is an interactive lifecycle manager session.
type Shell struct {
	session *scenario.Session
	shell   *cli.App
}

// NewWithConfig returns a new Shell using the provided readline and manager
// configurations. onExit is called by the 'exit' command.
func NewWithConfig(printLogotype bool, onExit func(int), c *readline.Config, cfg config.Config, log *zap.Logger) (*Shell, error) {
	if c.AutoComplete == nil {
		// Autocomplete commands on TAB.
		c.AutoComplete = completer
	}
	l, err := readline.NewEx(c)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	m, err := arc.New(cfg.Manager, log)
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	ctl := cli.NewApp()
	ctl.Name = "arcgo shell"

	// Note: need to set empty `ctl.HelpName` and `ctl.UsageText`, otherwise
	// `filepath.Base(os.Args[0])` will be used which is `arcgo`.
	ctl.HelpName = ""
	ctl.UsageText = ""

	ctl.Writer = l.Stdout()
	ctl.ErrWriter = l.Stderr()
	ctl.Version = config.Version
	ctl.Usage = "Interactive lifecycle manager shell"

	// Override default error handler in order not to exit on error.
	ctl.ExitErrHandler = func(context *cli.Context, err error) {}

	ctl.Commands = commands

	sh := &Shell{
		session: scenario.NewSession(m, log),
		shell:   ctl,
	}
	sh.shell.Metadata = map[string]any{
		sessionKey:          sh.session,
		exitFuncKey:         onExit,
		exitedKey:           false,
		readlineInstanceKey: l,
		printLogoKey:        printLogotype,
	}
	return sh, nil
}

func getSessionFromContext(app *cli.App) *scenario.Session {
	return app.Metadata[sessionKey].(*scenario.Session)
}

func getExitFuncFromContext(app *cli.App) func(int) {
	return app.Metadata[exitFuncKey].(func(int))
}

func getReadlineInstanceFromContext(app *cli.App) *readline.Instance {
	return app.Metadata[readlineInstanceKey].(*readline.Instance)
}

func getPrintLogoFromContext(app *cli.App) bool {
	return app.Metadata[printLogoKey].(bool)
}

func isExited(app *cli.App) bool {
	return app.Metadata[exitedKey].(bool)
}

// Session returns the session the shell operates on.
func (c *Shell) Session() *scenario.Session {
	return c.session
}

// Run waits for user input from Stdin and executes the passed command.
func (c *Shell) Run() error {
	if getPrintLogoFromContext(c.shell) {
		printLogo(c.shell.Writer)
	}
	l := getReadlineInstanceFromContext(c.shell)
	defer func() { _ = l.Close() }()
	for !isExited(c.shell) {
		line, err := l.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil // OK, stop execution.
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err) // Critical error, stop execution.
		}

		args, err := shellquote.Split(line)
		if err != nil {
			writeErr(c.shell.ErrWriter, fmt.Errorf("failed to parse arguments: %w", err))
			continue // Not a critical error, continue execution.
		}
		if len(args) == 0 {
			continue
		}

		err = c.shell.Run(append([]string{"arc"}, args...))
		if err != nil {
			writeErr(c.shell.ErrWriter, err) // Various command/flags parsing errors and execution errors.
		}
	}
	return nil
}

func handleExit(c *cli.Context) error {
	c.App.Metadata[exitedKey] = true
	fmt.Fprintln(c.App.Writer, "Bye!")
	getExitFuncFromContext(c.App)(0)
	return nil
}

func needArgs(c *cli.Context, min, max int) ([]string, error) {
	args := c.Args()
	if len(args) < min {
		return nil, fmt.Errorf("%w: %s", ErrMissingParameter, c.Command.UsageText)
	}
	if len(args) > max {
		return nil, fmt.Errorf("%w: too many arguments, usage: %s", ErrInvalidParameter, c.Command.UsageText)
	}
	return args, nil
}

func parseKind(s string) (arc.Kind, error) {
	k, err := arc.KindFromString(s)
	if err != nil {
		return k, fmt.Errorf("%w: %s", ErrInvalidParameter, err)
	}
	return k, nil
}

func optional(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func handleAlloc(c *cli.Context) error {
	args, err := needArgs(c, 1, 2)
	if err != nil {
		return err
	}
	s := getSessionFromContext(c.App)
	if err := s.Exec(scenario.Step{Op: scenario.OpAlloc, Object: args[0], Label: optional(args, 1)}); err != nil {
		return err
	}
	id, _ := s.Object(args[0])
	fmt.Fprintf(c.App.Writer, "%s is #%d\n", args[0], id)
	return nil
}

func handleSlot(c *cli.Context) error {
	args, err := needArgs(c, 2, 3)
	if err != nil {
		return err
	}
	kind, err := parseKind(args[1])
	if err != nil {
		return err
	}
	return execAndShow(c, scenario.Step{Op: scenario.OpSlot, Slot: args[0], Kind: kind, Target: optional(args, 2)})
}

func handleField(c *cli.Context) error {
	args, err := needArgs(c, 3, 4)
	if err != nil {
		return err
	}
	kind, err := parseKind(args[2])
	if err != nil {
		return err
	}
	return execAndShow(c, scenario.Step{Op: scenario.OpField, Object: args[0], Slot: args[1], Kind: kind, Target: optional(args, 3)})
}

func handleAssign(c *cli.Context) error {
	args, err := needArgs(c, 2, 2)
	if err != nil {
		return err
	}
	return execAndShow(c, scenario.Step{Op: scenario.OpAssign, Slot: args[0], Target: args[1]})
}

func handleRelease(c *cli.Context) error {
	args, err := needArgs(c, 1, 1)
	if err != nil {
		return err
	}
	return execAndShow(c, scenario.Step{Op: scenario.OpRelease, Slot: args[0]})
}

// execAndShow executes a slot step and prints the resulting slot state along
// with objects finalized by it.
func execAndShow(c *cli.Context, step scenario.Step) error {
	s := getSessionFromContext(c.App)
	before := len(s.Finalized())
	if err := s.Exec(step); err != nil {
		return err
	}
	slot, _ := s.Slot(step.Slot)
	fmt.Fprintf(c.App.Writer, "%s: %s\n", step.Slot, describeTarget(s, s.Manager().Read(slot)))
	for _, name := range s.Finalized()[before:] {
		fmt.Fprintf(c.App.Writer, "%s finalized\n", name)
	}
	return nil
}

func describeTarget(s *scenario.Session, id arc.ID) string {
	if id == arc.Nil {
		return "<empty>"
	}
	return fmt.Sprintf("%s (#%d)", s.NameOf(id), id)
}

func handleRead(c *cli.Context) error {
	args, err := needArgs(c, 1, 1)
	if err != nil {
		return err
	}
	s := getSessionFromContext(c.App)
	slot, err := s.Slot(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, describeTarget(s, s.Manager().Read(slot)))
	return nil
}

func handleAccess(c *cli.Context) error {
	args, err := needArgs(c, 1, 1)
	if err != nil {
		return err
	}
	s := getSessionFromContext(c.App)
	slot, err := s.Slot(args[0])
	if err != nil {
		return err
	}
	var (
		v  any
		ok bool
	)
	if err := arc.Protect(func() { v, ok = s.Manager().Access(slot) }); err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(c.App.Writer, "<empty>")
		return nil
	}
	fmt.Fprintln(c.App.Writer, v)
	return nil
}

func handleInfo(c *cli.Context) error {
	args, err := needArgs(c, 1, 1)
	if err != nil {
		return err
	}
	s := getSessionFromContext(c.App)
	id, err := s.Object(args[0])
	if err != nil {
		return err
	}
	info, ok := s.Manager().Info(id)
	if !ok {
		fmt.Fprintf(c.App.Writer, "#%d (finalized)\n", id)
		return nil
	}
	fmt.Fprintln(c.App.Writer, info)
	return nil
}

func handleLive(c *cli.Context) error {
	s := getSessionFromContext(c.App)
	return printObjects(c.App.Writer, s, s.Manager().Live())
}

func handleLeaks(c *cli.Context) error {
	s := getSessionFromContext(c.App)
	return printObjects(c.App.Writer, s, s.Manager().Leaks())
}

func printObjects(w io.Writer, s *scenario.Session, ids []arc.ID) error {
	if len(ids) == 0 {
		fmt.Fprintln(w, "none")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, id := range ids {
		info, _ := s.Manager().Info(id)
		fmt.Fprintf(tw, "%s\t%s\n", s.NameOf(id), info)
	}
	return tw.Flush()
}

func handleStats(c *cli.Context) error {
	st := getSessionFromContext(c.App).Manager().Stats()
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "allocated:\t%d\n", st.Allocated)
	fmt.Fprintf(tw, "finalized:\t%d\n", st.Finalized)
	fmt.Fprintf(tw, "live:\t%d\n", st.Live)
	fmt.Fprintf(tw, "weak nulled:\t%d\n", st.WeakNulled)
	fmt.Fprintf(tw, "faults:\t%d\n", st.Faults)
	return tw.Flush()
}

const logo = `
    ___    ____  ______   __________
   /   |  / __ \/ ____/  / ____/ __ \
  / /| | / /_/ / /      / / __/ / / /
 / ___ |/ _, _/ /___   / /_/ / /_/ /
/_/  |_/_/ |_|\____/   \____/\____/
`

func printLogo(w io.Writer) {
	fmt.Fprint(w, logo)
	fmt.Fprintln(w)
}

func writeErr(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", strings.TrimSpace(err.Error()))
}
