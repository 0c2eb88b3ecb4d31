package arc

// Scope holds local Strong references that are released together, like
// variables of a function body.
type Scope struct {
	mgr    *Manager
	slots  []*Slot
	closed bool
}

// NewScope returns a new empty scope.
func (m *Manager) NewScope() *Scope {
	return &Scope{mgr: m}
}

// Hold creates a local Strong slot referencing id and binds it to the scope.
func (sc *Scope) Hold(id ID) (*Slot, error) {
	if sc.closed {
		return nil, ErrScopeClosed
	}
	s := sc.mgr.NewSlot(Strong)
	if err := sc.mgr.Assign(s, id); err != nil {
		return nil, err
	}
	sc.slots = append(sc.slots, s)
	return s, nil
}

// Close releases all slots of the scope in reverse order. It can be called
// multiple times, only the first call does something. The first release error
// is returned, but all slots are released anyway.
func (sc *Scope) Close() error {
	if sc.closed {
		return nil
	}
	sc.closed = true
	var err error
	for i := len(sc.slots) - 1; i >= 0; i-- {
		if e := sc.mgr.Release(sc.slots[i]); e != nil && err == nil {
			err = e
		}
	}
	sc.slots = nil
	return err
}

// Using holds id strongly while fn runs, the reference is released on every
// exit path including panics.
func (m *Manager) Using(id ID, fn func(s *Slot) error) (err error) {
	sc := m.NewScope()
	s, err := sc.Hold(id)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sc.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
