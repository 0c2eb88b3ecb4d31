package scenario

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/nspcc-dev/arcgo/pkg/arc"
	"github.com/nspcc-dev/arcgo/pkg/config"
	"go.uber.org/zap"
)

// Various run errors.
var (
	ErrExpectation   = errors.New("expectation failed")
	ErrUnknownObject = errors.New("unknown object")
	ErrUnknownSlot   = errors.New("unknown slot")
	ErrDuplicate     = errors.New("duplicate name")
	ErrNoScope       = errors.New("no open scope")
)

// Object is the payload of scenario objects.
type Object struct {
	Name  string
	Label string
}

// String implements fmt.Stringer interface.
func (o *Object) String() string {
	if o.Label != "" {
		return o.Label
	}
	return o.Name
}

// Report describes a scenario run.
type Report struct {
	RunID uuid.UUID `yaml:"run"`
	Name  string    `yaml:"name"`
	// Steps is the number of steps executed.
	Steps int `yaml:"steps"`
	// Finalized lists finalized objects in finalization order.
	Finalized []string `yaml:"finalized"`
	// Leaked lists objects that remained alive, but unreachable from local
	// slots after the run.
	Leaked []string  `yaml:"leaked"`
	Faults int       `yaml:"faults"`
	Stats  arc.Stats `yaml:"stats"`
}

// Runner executes scenarios, every scenario gets a fresh Manager.
type Runner struct {
	cfg config.ManagerConfiguration
	log *zap.Logger
}

// NewRunner returns a new Runner creating managers with the given
// configuration.
func NewRunner(cfg config.ManagerConfiguration, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{cfg: cfg, log: log}
}

// Session keeps named objects, slots and scopes of a Manager, it executes
// steps one by one. Runner uses a new Session for every scenario.
type Session struct {
	m         *arc.Manager
	log       *zap.Logger
	objects   map[string]arc.ID
	names     map[arc.ID]string
	slots     map[string]*arc.Slot
	scopes    []*arc.Scope
	finalized []string
	faults    int
}

// NewSession returns a new Session using m.
func NewSession(m *arc.Manager, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		m:       m,
		log:     log,
		objects: make(map[string]arc.ID),
		names:   make(map[arc.ID]string),
		slots:   make(map[string]*arc.Slot),
	}
}

// Run executes all steps of s. The report is returned even if some step
// fails, it describes the state at the moment of failure.
func (r *Runner) Run(s *Scenario) (*Report, error) {
	rep := &Report{
		RunID: uuid.New(),
		Name:  s.Name,
	}
	log := r.log.With(zap.String("scenario", s.Name), zap.Stringer("run", rep.RunID))
	m, err := arc.New(r.cfg, log)
	if err != nil {
		return rep, err
	}
	defer m.Close()
	st := NewSession(m, log)

	log.Info("running scenario", zap.Int("steps", len(s.Steps)))
	for i, step := range s.Steps {
		if err = st.Exec(step); err != nil {
			err = fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
			break
		}
		rep.Steps++
	}
	if err == nil {
		err = st.Close()
	}
	rep.Finalized = st.Finalized()
	rep.Faults = st.faults
	rep.Leaked = st.NamesOf(m.Leaks())
	rep.Stats = m.Stats()
	if err != nil {
		log.Warn("scenario failed", zap.Error(err))
		return rep, err
	}
	log.Info("scenario completed",
		zap.Int("finalized", len(rep.Finalized)),
		zap.Int("leaked", len(rep.Leaked)),
		zap.Int("faults", rep.Faults))
	return rep, nil
}

// Manager returns the Manager of the session.
func (st *Session) Manager() *arc.Manager {
	return st.m
}

// Finalized returns names of finalized objects in finalization order.
func (st *Session) Finalized() []string {
	return append([]string(nil), st.finalized...)
}

// Close closes all open scopes, innermost first.
func (st *Session) Close() error {
	for len(st.scopes) > 0 {
		if err := st.exit(); err != nil {
			return err
		}
	}
	return nil
}

// Exec executes a single step.
func (st *Session) Exec(step Step) error {
	switch step.Op {
	case OpAlloc:
		return st.alloc(step)
	case OpSlot:
		if _, ok := st.slots[step.Slot]; ok {
			return fmt.Errorf("%w: slot %s", ErrDuplicate, step.Slot)
		}
		s := st.m.NewSlot(step.Kind)
		st.slots[step.Slot] = s
		return st.assign(s, step.Target)
	case OpField:
		if _, ok := st.slots[step.Slot]; ok {
			return fmt.Errorf("%w: slot %s", ErrDuplicate, step.Slot)
		}
		owner, err := st.Object(step.Object)
		if err != nil {
			return err
		}
		s, err := st.m.NewField(owner, step.Kind)
		if err != nil {
			return err
		}
		st.slots[step.Slot] = s
		return st.assign(s, step.Target)
	case OpAssign:
		s, err := st.Slot(step.Slot)
		if err != nil {
			return err
		}
		return st.assign(s, step.Target)
	case OpRelease:
		s, err := st.Slot(step.Slot)
		if err != nil {
			return err
		}
		return st.m.Release(s)
	case OpRead:
		return st.read(step)
	case OpAccess:
		return st.access(step)
	case OpEnter:
		st.scopes = append(st.scopes, st.m.NewScope())
		return nil
	case OpHold:
		return st.hold(step)
	case OpExit:
		return st.exit()
	case OpCheck:
		return st.check(step.Expect)
	default:
		return fmt.Errorf("unknown operation %q", step.Op)
	}
}

func (st *Session) alloc(step Step) error {
	if _, ok := st.objects[step.Object]; ok {
		return fmt.Errorf("%w: object %s", ErrDuplicate, step.Object)
	}
	obj := &Object{Name: step.Object, Label: step.Label}
	id := st.m.Allocate(obj, func(id arc.ID, _ any) {
		st.finalized = append(st.finalized, obj.Name)
		st.log.Info("object deallocated", zap.String("object", obj.Name), zap.Uint64("id", uint64(id)))
	})
	st.objects[step.Object] = id
	st.names[id] = step.Object
	return nil
}

func (st *Session) assign(s *arc.Slot, target string) error {
	if target == "" {
		return nil
	}
	id, err := st.Object(target)
	if err != nil {
		return err
	}
	return st.m.Assign(s, id)
}

func (st *Session) read(step Step) error {
	s, err := st.Slot(step.Slot)
	if err != nil {
		return err
	}
	got := st.m.Read(s)
	switch {
	case step.Expect.Empty && got != arc.Nil:
		return fmt.Errorf("%w: %s is expected to be empty, got %s", ErrExpectation, step.Slot, st.names[got])
	case step.Target != "":
		want, err := st.Object(step.Target)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("%w: %s is expected to reference %s, got %q", ErrExpectation, step.Slot, step.Target, st.names[got])
		}
	}
	return nil
}

func (st *Session) access(step Step) error {
	s, err := st.Slot(step.Slot)
	if err != nil {
		return err
	}
	var (
		v  any
		ok bool
	)
	err = arc.Protect(func() {
		v, ok = st.m.Access(s)
	})
	if err != nil {
		st.faults++
		if !step.Expect.Fault {
			return fmt.Errorf("unexpected fault: %w", err)
		}
		st.log.Info("fault caught", zap.Error(err))
		return nil
	}
	switch {
	case step.Expect.Fault:
		return fmt.Errorf("%w: access through %s is expected to fault", ErrExpectation, step.Slot)
	case step.Expect.Empty && ok:
		return fmt.Errorf("%w: %s is expected to be empty", ErrExpectation, step.Slot)
	case step.Target != "":
		obj, _ := v.(*Object)
		if !ok || obj == nil || obj.Name != step.Target {
			return fmt.Errorf("%w: %s is expected to reference %s", ErrExpectation, step.Slot, step.Target)
		}
	}
	return nil
}

func (st *Session) hold(step Step) error {
	if len(st.scopes) == 0 {
		return ErrNoScope
	}
	if step.Slot != "" {
		if _, ok := st.slots[step.Slot]; ok {
			return fmt.Errorf("%w: slot %s", ErrDuplicate, step.Slot)
		}
	}
	id, err := st.Object(step.Target)
	if err != nil {
		return err
	}
	s, err := st.scopes[len(st.scopes)-1].Hold(id)
	if err != nil {
		return err
	}
	if step.Slot != "" {
		st.slots[step.Slot] = s
	}
	return nil
}

func (st *Session) exit() error {
	if len(st.scopes) == 0 {
		return ErrNoScope
	}
	sc := st.scopes[len(st.scopes)-1]
	st.scopes = st.scopes[:len(st.scopes)-1]
	return sc.Close()
}

func (st *Session) check(e Expect) error {
	for _, name := range e.Alive {
		id, err := st.Object(name)
		if err != nil {
			return err
		}
		if !st.m.IsAlive(id) {
			return fmt.Errorf("%w: %s is expected to be alive", ErrExpectation, name)
		}
	}
	for _, name := range e.Finalized {
		id, err := st.Object(name)
		if err != nil {
			return err
		}
		if st.m.IsAlive(id) {
			return fmt.Errorf("%w: %s is expected to be finalized", ErrExpectation, name)
		}
	}
	if len(e.Order) != 0 && !equalStrings(e.Order, st.finalized) {
		return fmt.Errorf("%w: finalization order %v, expected %v", ErrExpectation, st.finalized, e.Order)
	}
	if len(e.Leaked) != 0 {
		got := st.NamesOf(st.m.Leaks())
		want := append([]string(nil), e.Leaked...)
		sort.Strings(got)
		sort.Strings(want)
		if !equalStrings(got, want) {
			return fmt.Errorf("%w: leaked %v, expected %v", ErrExpectation, got, want)
		}
	}
	if err := st.checkCounts("strong", e.Strong, st.m.StrongCount); err != nil {
		return err
	}
	return st.checkCounts("weak", e.Weak, st.m.WeakCount)
}

func (st *Session) checkCounts(kind string, want map[string]int, get func(arc.ID) int) error {
	for name, n := range want {
		id, err := st.Object(name)
		if err != nil {
			return err
		}
		if got := get(id); got != n {
			return fmt.Errorf("%w: %s count of %s is %d, expected %d", ErrExpectation, kind, name, got, n)
		}
	}
	return nil
}

// Object returns the ID of the named object.
func (st *Session) Object(name string) (arc.ID, error) {
	id, ok := st.objects[name]
	if !ok {
		return arc.Nil, fmt.Errorf("%w: %s", ErrUnknownObject, name)
	}
	return id, nil
}

// Slot returns the named slot.
func (st *Session) Slot(name string) (*arc.Slot, error) {
	s, ok := st.slots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, name)
	}
	return s, nil
}

// NameOf returns the name of the object, it's empty for Nil and for objects
// allocated outside of the session.
func (st *Session) NameOf(id arc.ID) string {
	return st.names[id]
}

// NamesOf returns names of the given objects.
func (st *Session) NamesOf(ids []arc.ID) []string {
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		res = append(res, st.names[id])
	}
	return res
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
