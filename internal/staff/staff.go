// Package staff contains a small model of collaborating records built on the
// lifecycle manager: employees referencing colleagues, departments owning
// their managers and managers referring back to their departments.
package staff

import (
	"errors"
	"fmt"
	"io"

	"github.com/nspcc-dev/arcgo/pkg/arc"
)

// ErrNoDepartment is returned when a manager is created for a department
// that is missing or already deallocated.
var ErrNoDepartment = errors.New("no such department")

// Registry creates staff records in a Manager and reports their
// deallocation to the given writer.
type Registry struct {
	mgr *arc.Manager
	out io.Writer
}

// Record is implemented by all staff records.
type Record interface {
	fmt.Stringer
	ID() arc.ID
}

// New returns a new Registry, out may be nil.
func New(m *arc.Manager, out io.Writer) *Registry {
	if out == nil {
		out = io.Discard
	}
	return &Registry{mgr: m, out: out}
}

// Hold returns a new local Strong slot referencing rec.
func (r *Registry) Hold(rec Record) (*arc.Slot, error) {
	s := r.mgr.NewSlot(arc.Strong)
	if err := r.mgr.Assign(s, rec.ID()); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Registry) allocate(rec Record) arc.ID {
	return r.mgr.Allocate(rec, func(_ arc.ID, _ any) {
		fmt.Fprintf(r.out, "%s deallocated\n", rec)
	})
}

// Employee can reference a colleague, the reference kind is chosen on
// creation.
type Employee struct {
	Name   string
	Salary int

	reg       *Registry
	id        arc.ID
	colleague *arc.Slot
}

// NewEmployee allocates a new employee with colleague reference of the given
// kind.
func (r *Registry) NewEmployee(name string, salary int, colleague arc.Kind) (*Employee, error) {
	e := &Employee{Name: name, Salary: salary, reg: r}
	e.id = r.allocate(e)
	s, err := r.mgr.NewField(e.id, colleague)
	if err != nil {
		return nil, err
	}
	e.colleague = s
	return e, nil
}

// ID implements Record interface.
func (e *Employee) ID() arc.ID { return e.id }

// String implements fmt.Stringer interface.
func (e *Employee) String() string { return "Employee " + e.Name }

// SetColleague sets the colleague of e, nil clears it.
func (e *Employee) SetColleague(c *Employee) error {
	if c == nil {
		return e.reg.mgr.Release(e.colleague)
	}
	return e.reg.mgr.Assign(e.colleague, c.id)
}

// Colleague returns the colleague of e if there is one. It panics with
// *arc.Fault if the colleague is unowned and is already gone.
func (e *Employee) Colleague() (*Employee, bool) {
	v, ok := e.reg.mgr.Access(e.colleague)
	if !ok {
		return nil, false
	}
	return v.(*Employee), true
}

// Department owns its manager.
type Department struct {
	Name string

	reg     *Registry
	id      arc.ID
	manager *arc.Slot
}

// NewDepartment allocates a new department without a manager.
func (r *Registry) NewDepartment(name string) (*Department, error) {
	d := &Department{Name: name, reg: r}
	d.id = r.allocate(d)
	s, err := r.mgr.NewField(d.id, arc.Strong)
	if err != nil {
		return nil, err
	}
	d.manager = s
	return d, nil
}

// ID implements Record interface.
func (d *Department) ID() arc.ID { return d.id }

// String implements fmt.Stringer interface.
func (d *Department) String() string { return "Department " + d.Name }

// SetManager sets the manager of the department, nil clears it.
func (d *Department) SetManager(m *Manager) error {
	if m == nil {
		return d.reg.mgr.Release(d.manager)
	}
	return d.reg.mgr.Assign(d.manager, m.id)
}

// Manager returns the manager of the department.
func (d *Department) Manager() (*Manager, bool) {
	v, ok := d.reg.mgr.Access(d.manager)
	if !ok {
		return nil, false
	}
	return v.(*Manager), true
}

// Manager references its department as unowned, it's expected to never
// outlive it.
type Manager struct {
	Name string

	reg        *Registry
	id         arc.ID
	department *arc.Slot
}

// NewManager allocates a new manager of the given department. The department
// must be alive and belong to r, nothing is allocated otherwise.
func (r *Registry) NewManager(name string, d *Department) (*Manager, error) {
	if d == nil || d.reg != r || !r.mgr.IsAlive(d.id) {
		return nil, ErrNoDepartment
	}
	m := &Manager{Name: name, reg: r}
	m.id = r.allocate(m)
	s, err := r.mgr.NewField(m.id, arc.Unowned)
	if err != nil {
		return nil, err
	}
	if err = r.mgr.Assign(s, d.id); err != nil {
		return nil, err
	}
	m.department = s
	return m, nil
}

// ID implements Record interface.
func (m *Manager) ID() arc.ID { return m.id }

// String implements fmt.Stringer interface.
func (m *Manager) String() string { return "Manager " + m.Name }

// Department returns the department of the manager. It panics with
// *arc.Fault if the department is already gone.
func (m *Manager) Department() *Department {
	v, _ := m.reg.mgr.Access(m.department)
	d, _ := v.(*Department)
	return d
}
