package demo

import (
	"fmt"
	"io"
	"strings"

	"github.com/nspcc-dev/arcgo/cli/options"
	"github.com/nspcc-dev/arcgo/internal/staff"
	"github.com/nspcc-dev/arcgo/pkg/arc"
	"github.com/nspcc-dev/arcgo/pkg/config"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

type demo struct {
	name  string
	title string
	run   func(w io.Writer, m *arc.Manager) error
}

var demos = []demo{
	{"strong", "Strong reference cycle", strongCycle},
	{"weak", "Weak colleague references", weakColleagues},
	{"unowned", "Unowned department reference", unownedDepartment},
}

// NewCommands returns 'demo' command.
func NewCommands() []cli.Command {
	names := make([]string, 0, len(demos))
	for _, d := range demos {
		names = append(names, d.name)
	}
	return []cli.Command{{
		Name:      "demo",
		Usage:     "show how reference kinds affect object lifetimes",
		UsageText: "arcgo demo [--config-file file] [" + strings.Join(names, "|") + "...]",
		Description: `Runs the classic employee and department examples and prints
   deallocation messages as they happen. All demos are run if no names are given.`,
		Action: runDemos,
		Flags:  options.Common,
	}}
}

func runDemos(ctx *cli.Context) error {
	cfg, log, err := options.NewLogger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	selected := demos
	if ctx.NArg() != 0 {
		selected = nil
		for _, name := range ctx.Args() {
			d, ok := findDemo(name)
			if !ok {
				return cli.NewExitError(fmt.Errorf("unknown demo %q", name), 1)
			}
			selected = append(selected, d)
		}
	}
	for _, d := range selected {
		if err := runDemo(ctx.App.Writer, d, cfg.Manager, log); err != nil {
			return cli.NewExitError(fmt.Errorf("%s demo: %w", d.name, err), 1)
		}
	}
	return nil
}

func findDemo(name string) (demo, bool) {
	for _, d := range demos {
		if d.name == name {
			return d, true
		}
	}
	return demo{}, false
}

func runDemo(w io.Writer, d demo, cfg config.ManagerConfiguration, log *zap.Logger) error {
	m, err := arc.New(cfg, log.With(zap.String("demo", d.name)))
	if err != nil {
		return err
	}
	defer m.Close()
	fmt.Fprintf(w, "== %s ==\n", d.title)
	if err := d.run(w, m); err != nil {
		return err
	}
	st := m.Stats()
	fmt.Fprintf(w, "allocated: %d, finalized: %d, live: %d\n\n", st.Allocated, st.Finalized, st.Live)
	return nil
}

func colleagues(w io.Writer, m *arc.Manager, kind arc.Kind) (*arc.Slot, *arc.Slot, error) {
	reg := staff.New(m, w)
	sabby, err := reg.NewEmployee("Sabby", 50000, kind)
	if err != nil {
		return nil, nil, err
	}
	cathy, err := reg.NewEmployee("Cathy", 45000, kind)
	if err != nil {
		return nil, nil, err
	}
	s1, err := reg.Hold(sabby)
	if err != nil {
		return nil, nil, err
	}
	s2, err := reg.Hold(cathy)
	if err != nil {
		return nil, nil, err
	}
	if err := sabby.SetColleague(cathy); err != nil {
		return nil, nil, err
	}
	if err := cathy.SetColleague(sabby); err != nil {
		return nil, nil, err
	}
	fmt.Fprintf(w, "%s and %s are %s colleagues\n", sabby, cathy, kind)
	return s1, s2, nil
}

func releaseAll(w io.Writer, m *arc.Manager, slots ...*arc.Slot) error {
	for _, s := range slots {
		fmt.Fprintf(w, "releasing %s\n", s)
		if err := m.Release(s); err != nil {
			return err
		}
	}
	return nil
}

func strongCycle(w io.Writer, m *arc.Manager) error {
	s1, s2, err := colleagues(w, m, arc.Strong)
	if err != nil {
		return err
	}
	if err := releaseAll(w, m, s1, s2); err != nil {
		return err
	}
	for _, id := range m.Leaks() {
		info, _ := m.Info(id)
		fmt.Fprintf(w, "leaked: %s\n", info)
	}
	return nil
}

func weakColleagues(w io.Writer, m *arc.Manager) error {
	s1, s2, err := colleagues(w, m, arc.Weak)
	if err != nil {
		return err
	}
	return releaseAll(w, m, s1, s2)
}

func unownedDepartment(w io.Writer, m *arc.Manager) error {
	reg := staff.New(m, w)
	it, err := reg.NewDepartment("IT")
	if err != nil {
		return err
	}
	dept, err := reg.Hold(it)
	if err != nil {
		return err
	}
	alice, err := reg.NewManager("Alice", it)
	if err != nil {
		return err
	}
	mgr, err := reg.Hold(alice)
	if err != nil {
		return err
	}
	if err := it.SetManager(alice); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s manages %s\n", alice, alice.Department())
	if err := releaseAll(w, m, mgr, dept); err != nil {
		return err
	}

	// Manager outliving its department is a programming error.
	qa, err := reg.NewDepartment("QA")
	if err != nil {
		return err
	}
	dept, err = reg.Hold(qa)
	if err != nil {
		return err
	}
	bob, err := reg.NewManager("Bob", qa)
	if err != nil {
		return err
	}
	if _, err := reg.Hold(bob); err != nil {
		return err
	}
	if err := releaseAll(w, m, dept); err != nil {
		return err
	}
	err = arc.Protect(func() { bob.Department() })
	fmt.Fprintf(w, "%s: %v\n", bob, err)
	return nil
}
