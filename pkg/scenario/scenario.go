/*
Package scenario runs scripted sequences of lifecycle manager operations.

A scenario is a YAML document with a list of steps, every step is one of:

	alloc    allocate object <object> with optional <label>
	slot     create local slot <slot> of <kind>, optionally assigning <target>
	field    create field <slot> of <kind> owned by <object>, optionally assigning <target>
	assign   assign <target> to <slot>
	release  release <slot>
	read     read <slot>, expecting <target> or an empty slot (expect.empty)
	access   access through <slot>, expecting <target>, an empty slot or a fault
	enter    open a new scope
	hold     hold <target> strongly in the innermost scope (named <slot> if given)
	exit     close the innermost scope
	check    check expectations about objects (see Expect)

Built-in scenarios reproduce the classic ARC examples: a strong reference
cycle between two employees, weak colleague references, an unowned manager to
department back reference and a scoped resource.
*/
package scenario

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/nspcc-dev/arcgo/pkg/arc"
	"gopkg.in/yaml.v3"
)

// Op is a scenario step operation.
type Op string

// Known step operations.
const (
	OpAlloc   Op = "alloc"
	OpSlot    Op = "slot"
	OpField   Op = "field"
	OpAssign  Op = "assign"
	OpRelease Op = "release"
	OpRead    Op = "read"
	OpAccess  Op = "access"
	OpEnter   Op = "enter"
	OpHold    Op = "hold"
	OpExit    Op = "exit"
	OpCheck   Op = "check"
)

// Scenario is a named sequence of steps.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step is a single scenario operation, fields used depend on Op.
type Step struct {
	Op     Op       `yaml:"op"`
	Object string   `yaml:"object,omitempty"`
	Label  string   `yaml:"label,omitempty"`
	Slot   string   `yaml:"slot,omitempty"`
	Kind   arc.Kind `yaml:"kind,omitempty"`
	Target string   `yaml:"target,omitempty"`
	Expect Expect   `yaml:"expect,omitempty"`
}

// Expect contains step expectations. Empty lists are not checked.
type Expect struct {
	// Empty is used by read and access steps.
	Empty bool `yaml:"empty,omitempty"`
	// Fault is used by access steps.
	Fault bool `yaml:"fault,omitempty"`

	// The rest are used by check steps.
	Alive     []string       `yaml:"alive,omitempty"`
	Finalized []string       `yaml:"finalized,omitempty"`
	Order     []string       `yaml:"order,omitempty"`
	Leaked    []string       `yaml:"leaked,omitempty"`
	Strong    map[string]int `yaml:"strong,omitempty"`
	Weak      map[string]int `yaml:"weak,omitempty"`
}

// Various errors.
var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrUnknownBuiltin  = errors.New("unknown built-in scenario")
)

//go:embed builtin/*.yml
var builtinFS embed.FS

// Load decodes a scenario from r and validates it.
func Load(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScenario, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile loads scenario from the given file.
func LoadFile(name string) (*Scenario, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Builtin returns a built-in scenario by name.
func Builtin(name string) (*Scenario, error) {
	data, err := builtinFS.ReadFile(path.Join("builtin", name+".yml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBuiltin, name)
	}
	return Load(bytes.NewReader(data))
}

// Builtins returns sorted names of built-in scenarios.
func Builtins() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		panic(err) // embedded, can't fail
	}
	res := make([]string, 0, len(entries))
	for _, e := range entries {
		res = append(res, strings.TrimSuffix(e.Name(), ".yml"))
	}
	sort.Strings(res)
	return res
}

// Validate checks that all steps have the fields they need.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: no name", ErrInvalidScenario)
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			return fmt.Errorf("%w: step %d (%s): %s", ErrInvalidScenario, i+1, st.Op, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	need := func(field, v string) error {
		if v == "" {
			return fmt.Errorf("no %s", field)
		}
		return nil
	}
	switch st.Op {
	case OpAlloc:
		return need("object", st.Object)
	case OpSlot, OpRelease, OpRead, OpAccess:
		return need("slot", st.Slot)
	case OpField:
		if err := need("object", st.Object); err != nil {
			return err
		}
		return need("slot", st.Slot)
	case OpAssign:
		if err := need("slot", st.Slot); err != nil {
			return err
		}
		return need("target", st.Target)
	case OpHold:
		return need("target", st.Target)
	case OpEnter, OpExit, OpCheck:
		return nil
	default:
		return errors.New("unknown operation")
	}
}
