package arc

import "fmt"

// SlotID identifies a slot within its Manager.
type SlotID uint64

// Slot is a mutable reference cell. Its kind is fixed at creation, the
// target is changed with Manager.Assign and Manager.Release only.
type Slot struct {
	id     SlotID
	kind   Kind
	target ID
	// owner is the object this slot is a field of, Nil for local slots.
	owner ID
	// detached is set when the owner is finalized.
	detached bool
	mgr      *Manager
}

// ID returns slot identifier.
func (s *Slot) ID() SlotID { return s.id }

// Kind returns slot ownership kind.
func (s *Slot) Kind() Kind { return s.kind }

// Owner returns the object the slot belongs to, Nil for local slots.
func (s *Slot) Owner() ID { return s.owner }

// IsLocal returns true for slots not owned by any object.
func (s *Slot) IsLocal() bool { return s.owner == Nil }

// String implements fmt.Stringer interface.
func (s *Slot) String() string {
	if s.target == Nil {
		return fmt.Sprintf("%s slot %d -> nil", s.kind, s.id)
	}
	return fmt.Sprintf("%s slot %d -> #%d", s.kind, s.id, s.target)
}
