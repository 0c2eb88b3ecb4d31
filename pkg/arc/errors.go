package arc

import "errors"

var (
	// ErrInvalidTarget is returned upon an attempt to assign an ID that was
	// never issued by the manager, or to make a Strong reference to an
	// object that is already finalized.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrUseAfterFree is carried by the Fault raised when an object is
	// accessed through an Unowned slot after its finalization.
	ErrUseAfterFree = errors.New("use after free")
	// ErrInternalConsistency signals a bug in the manager itself, like an
	// object being finalized twice or a negative reference count.
	ErrInternalConsistency = errors.New("internal consistency fault")
	// ErrForeignSlot is returned for nil slots and slots created by another
	// manager.
	ErrForeignSlot = errors.New("slot doesn't belong to this manager")
	// ErrDetachedSlot is returned upon an attempt to assign an object to a
	// field slot of an object that is already finalized.
	ErrDetachedSlot = errors.New("slot owner is finalized")
	// ErrDeadOwner is returned when a field is requested for an object that
	// is not alive.
	ErrDeadOwner = errors.New("owner is not alive")
)

// ErrScopeClosed is returned upon an attempt to hold a reference in a closed
// scope.
var ErrScopeClosed = errors.New("scope is closed")
