package arc

import "fmt"

// Fault is the panic value raised on fatal misuse of managed objects, like
// accessing an object through an Unowned slot after its finalization.
type Fault struct {
	// Slot is the slot the access was made through.
	Slot SlotID
	// Target is the object that was accessed.
	Target ID
	// Label is the description of the finalized object if it's still known
	// to the manager.
	Label string

	err error
}

func newFault(err error, s *Slot, label string) *Fault {
	return &Fault{
		Slot:   s.id,
		Target: s.target,
		Label:  label,
		err:    err,
	}
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Label != "" {
		return fmt.Sprintf("%s: object #%d (%s) accessed through slot %d", f.err, f.Target, f.Label, f.Slot)
	}
	return fmt.Sprintf("%s: object #%d accessed through slot %d", f.err, f.Target, f.Slot)
}

// Unwrap returns the fault reason.
func (f *Fault) Unwrap() error {
	return f.err
}

// Protect runs fn and converts a *Fault panic raised by it into an error.
// Any other panic is propagated as is.
func Protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*Fault)
			if !ok {
				panic(r)
			}
			err = f
		}
	}()
	fn()
	return nil
}
