package arc

// Leaks returns sorted IDs of alive objects that can't be reached from any
// local Strong slot following Strong fields. These are members of strong
// reference cycles, objects owned by them and objects that were allocated,
// but never held. Nothing is collected, it's a report only.
func (m *Manager) Leaks() []ID {
	var (
		reached = make(map[ID]struct{}, len(m.records))
		stack   = make([]ID, 0, len(m.roots))
	)
	for _, s := range m.roots {
		stack = append(stack, s.target)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := reached[id]; ok {
			continue
		}
		r, ok := m.records[id]
		if !ok || !r.alive {
			continue
		}
		reached[id] = struct{}{}
		for _, f := range r.fields {
			if f.kind == Strong && f.target != Nil {
				stack = append(stack, f.target)
			}
		}
	}

	var res []ID
	for id, r := range m.records {
		if _, ok := reached[id]; !ok && r.alive {
			res = append(res, id)
		}
	}
	sortIDs(res)
	return res
}
