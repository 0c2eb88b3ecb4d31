package arc

// weakTable indexes Weak slots by the object they observe.
type weakTable struct {
	observers map[ID]map[SlotID]*Slot
}

func newWeakTable() *weakTable {
	return &weakTable{
		observers: make(map[ID]map[SlotID]*Slot),
	}
}

// insert registers s as an observer of id. It returns false if s is
// already there.
func (t *weakTable) insert(id ID, s *Slot) bool {
	set, ok := t.observers[id]
	if !ok {
		set = make(map[SlotID]*Slot)
		t.observers[id] = set
	}
	if _, ok := set[s.id]; ok {
		return false
	}
	set[s.id] = s
	return true
}

// remove unregisters s as an observer of id. It returns false if s wasn't
// observing id.
func (t *weakTable) remove(id ID, s *Slot) bool {
	set, ok := t.observers[id]
	if !ok {
		return false
	}
	if _, ok := set[s.id]; !ok {
		return false
	}
	delete(set, s.id)
	if len(set) == 0 {
		delete(t.observers, id)
	}
	return true
}

// removeAll drops the entry for id and returns all slots that were
// observing it, in no particular order.
func (t *weakTable) removeAll(id ID) []*Slot {
	set, ok := t.observers[id]
	if !ok {
		return nil
	}
	delete(t.observers, id)
	res := make([]*Slot, 0, len(set))
	for _, s := range set {
		res = append(res, s)
	}
	return res
}

// count returns the number of slots observing id.
func (t *weakTable) count(id ID) int {
	return len(t.observers[id])
}
