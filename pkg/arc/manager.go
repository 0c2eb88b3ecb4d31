package arc

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/arcgo/pkg/config"
	"go.uber.org/zap"
)

// Stats contains Manager counters.
type Stats struct {
	Allocated  uint64 `yaml:"allocated"`
	Finalized  uint64 `yaml:"finalized"`
	Live       int    `yaml:"live"`
	WeakNulled uint64 `yaml:"weak_nulled"`
	Faults     uint64 `yaml:"faults"`
}

// Manager correlates object lifetimes with slot mutations. It's not safe for
// concurrent use.
type Manager struct {
	log     *zap.Logger
	records map[ID]*record
	weak    *weakTable
	// roots are non-empty local Strong slots.
	roots map[SlotID]*Slot
	// tombstones keep labels of finalized objects for faults, may be nil.
	tombstones *lru.Cache

	lastID   ID
	lastSlot SlotID
	stats    Stats
	// closed managers don't contribute to the live objects gauge.
	closed bool
}

// New returns a new Manager with the given configuration. A nil logger is
// replaced by a no-op one.
func New(cfg config.ManagerConfiguration, log *zap.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:     log,
		records: make(map[ID]*record),
		weak:    newWeakTable(),
		roots:   make(map[SlotID]*Slot),
	}
	if cfg.TombstoneCacheSize > 0 {
		c, err := lru.New(cfg.TombstoneCacheSize)
		if err != nil {
			return nil, fmt.Errorf("can't create tombstone cache: %w", err)
		}
		m.tombstones = c
	}
	return m, nil
}

// Allocate registers a new object with the given payload and finalizer (both
// can be nil). The object starts with zero strong count, it's alive, but it's
// not finalized until it gets and then loses a Strong reference.
func (m *Manager) Allocate(payload any, fin Finalizer) ID {
	m.lastID++
	r := &record{
		id:        m.lastID,
		alive:     true,
		payload:   payload,
		finalizer: fin,
	}
	m.records[r.id] = r
	m.stats.Allocated++
	updateAllocationMetrics(!m.closed)
	m.log.Debug("object allocated",
		zap.Uint64("id", uint64(r.id)),
		zap.String("label", r.label()))
	return r.id
}

// NewSlot returns a new empty local slot of the given kind. Local slots are
// the roots of the object graph, like variables of some function. It panics
// if kind is not valid.
func (m *Manager) NewSlot(kind Kind) *Slot {
	return m.newSlot(kind, Nil)
}

// NewField returns a new empty slot owned by the given object. Field slots
// are released when their owner is finalized.
func (m *Manager) NewField(owner ID, kind Kind) (*Slot, error) {
	r, ok := m.records[owner]
	if !ok || !r.alive {
		return nil, fmt.Errorf("%w: #%d", ErrDeadOwner, owner)
	}
	s := m.newSlot(kind, owner)
	r.fields = append(r.fields, s)
	return s, nil
}

func (m *Manager) newSlot(kind Kind, owner ID) *Slot {
	if !kind.IsValid() {
		panic(fmt.Sprintf("%s: %d", ErrInvalidKind, kind))
	}
	m.lastSlot++
	return &Slot{
		id:    m.lastSlot,
		kind:  kind,
		owner: owner,
		mgr:   m,
	}
}

// Assign makes s reference target (Nil empties the slot). For Strong and
// Weak slots target must be an ID allocated by this manager; Strong slots
// can't reference finalized objects, Weak ones just stay empty then. Unowned
// slots store any allocated ID as is, its liveness is only checked by
// Access. Releasing the previous Strong target can finalize it.
func (m *Manager) Assign(s *Slot, target ID) error {
	if s == nil || s.mgr != m {
		return ErrForeignSlot
	}
	// Detached fields are always empty, so releasing them is fine.
	if s.target == target {
		return nil
	}
	if s.detached {
		return fmt.Errorf("%w: slot %d of #%d", ErrDetachedSlot, s.id, s.owner)
	}
	// New target is established before the old one is released, the old
	// one can be the only owner of the new one.
	next, err := m.acquire(s, target)
	if err != nil {
		return err
	}
	old := s.target
	s.target = next
	m.trackRoot(s)
	return m.drop(s, old)
}

// Release empties s, it's the same as assigning Nil to it. Releasing an
// empty slot does nothing.
func (m *Manager) Release(s *Slot) error {
	return m.Assign(s, Nil)
}

// Read returns the target of s. For Strong and Weak slots it's either a live
// object or Nil, for Unowned slots the stored ID is returned regardless of
// its liveness.
func (m *Manager) Read(s *Slot) ID {
	if s == nil || s.mgr != m || s.target == Nil {
		return Nil
	}
	if s.kind == Unowned || m.IsAlive(s.target) {
		return s.target
	}
	return Nil
}

// Access dereferences s and returns the payload of its target. The second
// value is false for empty slots. If s is Unowned and its target is
// finalized Access panics with a *Fault wrapping ErrUseAfterFree, see
// Protect.
func (m *Manager) Access(s *Slot) (any, bool) {
	if s == nil || s.mgr != m || s.target == Nil {
		return nil, false
	}
	r, ok := m.records[s.target]
	if ok && r.alive {
		return r.payload, true
	}
	if s.kind != Unowned {
		return nil, false
	}

	var label string
	if ok {
		label = r.label()
	} else if m.tombstones != nil {
		if v, ok := m.tombstones.Get(s.target); ok {
			label = v.(string)
		}
	}
	m.stats.Faults++
	updateFaultMetrics()
	f := newFault(ErrUseAfterFree, s, label)
	m.log.Error("use after free",
		zap.Uint64("id", uint64(s.target)),
		zap.Uint64("slot", uint64(s.id)),
		zap.String("label", label))
	panic(f)
}

// acquire establishes a reference from s to target and returns the ID that
// should be stored in s.
func (m *Manager) acquire(s *Slot, target ID) (ID, error) {
	if target == Nil {
		return Nil, nil
	}
	if target > m.lastID {
		return Nil, fmt.Errorf("%w: #%d was never allocated", ErrInvalidTarget, target)
	}
	r, ok := m.records[target]
	alive := ok && r.alive
	switch s.kind {
	case Strong:
		if !alive {
			return Nil, fmt.Errorf("%w: #%d is finalized", ErrInvalidTarget, target)
		}
		r.strong++
		return target, nil
	case Weak:
		if !alive {
			m.log.Debug("weak reference to finalized object",
				zap.Uint64("id", uint64(target)),
				zap.Uint64("slot", uint64(s.id)))
			return Nil, nil
		}
		m.weak.insert(target, s)
		return target, nil
	default:
		return target, nil
	}
}

// drop releases the reference from s to old, s no longer points to it.
func (m *Manager) drop(s *Slot, old ID) error {
	if old == Nil {
		return nil
	}
	switch s.kind {
	case Strong:
		r, ok := m.records[old]
		if !ok {
			return fmt.Errorf("%w: strong slot %d references reclaimed #%d", ErrInternalConsistency, s.id, old)
		}
		r.strong--
		switch {
		case r.strong < 0:
			return fmt.Errorf("%w: negative strong count of #%d", ErrInternalConsistency, old)
		case r.strong == 0:
			return m.finalize(r)
		}
	case Weak:
		m.weak.remove(old, s)
	}
	return nil
}

// finalize runs the finalizer of r, releases its fields (depth first), nulls
// its weak observers and reclaims it.
func (m *Manager) finalize(r *record) error {
	if !r.alive {
		return fmt.Errorf("%w: #%d finalized twice", ErrInternalConsistency, r.id)
	}
	r.alive = false
	m.log.Debug("finalizing object",
		zap.Uint64("id", uint64(r.id)),
		zap.String("label", r.label()),
		zap.Int("fields", len(r.fields)))
	if r.finalizer != nil {
		r.finalizer(r.id, r.payload)
	}

	// Cascade even if some branch is broken, the first error is returned.
	var err error
	for _, f := range r.fields {
		old := f.target
		f.target = Nil
		f.detached = true
		if e := m.drop(f, old); e != nil && err == nil {
			err = e
		}
	}
	r.fields = nil

	observers := m.weak.removeAll(r.id)
	for _, s := range observers {
		s.target = Nil
	}

	delete(m.records, r.id)
	if m.tombstones != nil {
		m.tombstones.Add(r.id, r.label())
	}
	m.stats.Finalized++
	m.stats.WeakNulled += uint64(len(observers))
	updateFinalizationMetrics(len(observers), !m.closed)
	return err
}

func (m *Manager) trackRoot(s *Slot) {
	if s.owner != Nil || s.kind != Strong {
		return
	}
	if s.target == Nil {
		delete(m.roots, s.id)
	} else {
		m.roots[s.id] = s
	}
}

// IsAlive checks whether id is allocated and not finalized.
func (m *Manager) IsAlive(id ID) bool {
	r, ok := m.records[id]
	return ok && r.alive
}

// StrongCount returns the number of Strong slots referencing id.
func (m *Manager) StrongCount(id ID) int {
	if r, ok := m.records[id]; ok {
		return r.strong
	}
	return 0
}

// WeakCount returns the number of Weak slots observing id.
func (m *Manager) WeakCount(id ID) int {
	if !m.IsAlive(id) {
		return 0
	}
	return m.weak.count(id)
}

// Info returns a snapshot of the object state, false is returned for unknown
// or reclaimed objects.
func (m *Manager) Info(id ID) (Info, bool) {
	r, ok := m.records[id]
	if !ok {
		return Info{}, false
	}
	i := r.info()
	i.WeakCount = m.weak.count(id)
	return i, true
}

// Live returns sorted IDs of all alive objects.
func (m *Manager) Live() []ID {
	res := make([]ID, 0, len(m.records))
	for id, r := range m.records {
		if r.alive {
			res = append(res, id)
		}
	}
	sortIDs(res)
	return res
}

// Close stops counting objects of m in the process-wide live objects gauge,
// objects leaked by a manager that is no longer used are dropped from it this
// way. m stays usable after Close, it can be called more than once.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	dropLiveObjects(len(m.Live()))
}

// Stats returns manager counters.
func (m *Manager) Stats() Stats {
	s := m.stats
	s.Live = len(m.Live())
	return s
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
