/*
Package arc implements an explicit automatic reference counting lifecycle
manager.

Objects are allocated by a Manager and identified by an ID. References to them
are held in slots, every slot has a Kind fixed at creation:

  - Strong slots own their target, an object stays alive while at least one
    Strong slot points to it.
  - Weak slots observe their target, they're nulled when it's finalized.
  - Unowned slots keep the target ID verbatim without counting it, accessing
    an object through such a slot after it's finalized is a fatal fault.

Slots are either local (created with NewSlot or a Scope, they're the roots
of the object graph) or fields of some object (created with NewField). When
the last Strong reference to an object is released the object is finalized:
its finalizer is invoked, its fields are released (which can finalize other
objects, depth first) and all Weak slots observing it are nulled.

Strong reference cycles are never finalized, use Weak or Unowned back
references to break them. Leaks reports objects kept alive only by such
cycles.

# Faults

Access through an Unowned slot whose target is dead panics with a *Fault. It
is not a regular error, the operation that did it can't continue. Protect can
be used at the operation boundary to turn it into an error:

	err := arc.Protect(func() {
		v, _ := m.Access(dept)
		...
	})
	if errors.Is(err, arc.ErrUseAfterFree) {
		...
	}

A Manager is not safe for concurrent use.
*/
package arc
