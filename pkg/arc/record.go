package arc

import "fmt"

// ID identifies an object managed by a Manager. IDs are never reused.
type ID uint64

// Nil is the empty ID, slots holding it don't reference anything.
const Nil ID = 0

// Finalizer is invoked exactly once when the object is finalized, it gets
// the object's ID and payload.
type Finalizer func(id ID, payload any)

// record is the per-object bookkeeping.
type record struct {
	id        ID
	strong    int
	alive     bool
	payload   any
	finalizer Finalizer
	// fields are slots owned by this object, they're released on
	// finalization.
	fields []*Slot
}

// Info is a snapshot of the object state.
type Info struct {
	ID          ID
	Label       string
	StrongCount int
	WeakCount   int
	Alive       bool
	Fields      int
}

// label returns a human-readable description of the object for logs and
// faults.
func (r *record) label() string {
	return describe(r.payload)
}

func describe(payload any) string {
	switch p := payload.(type) {
	case nil:
		return ""
	case string:
		return p
	case fmt.Stringer:
		return p.String()
	default:
		return fmt.Sprintf("%T", payload)
	}
}

func (r *record) info() Info {
	return Info{
		ID:          r.id,
		Label:       r.label(),
		StrongCount: r.strong,
		Alive:       r.alive,
		Fields:      len(r.fields),
	}
}

// String implements fmt.Stringer interface.
func (i Info) String() string {
	state := "alive"
	if !i.Alive {
		state = "finalized"
	}
	if i.Label != "" {
		return fmt.Sprintf("#%d %q (%s, strong=%d, weak=%d)", i.ID, i.Label, state, i.StrongCount, i.WeakCount)
	}
	return fmt.Sprintf("#%d (%s, strong=%d, weak=%d)", i.ID, state, i.StrongCount, i.WeakCount)
}
