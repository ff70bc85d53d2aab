package bridge

import "runtime"

// Attacher binds the delivering goroutine to whatever the callback's runtime
// needs (an OS thread, a foreign VM) for one delivery. Attach reports whether
// this call did the binding; Detach is called only in that case.
type Attacher interface {
	Attach() (attached bool, err error)
	Detach()
}

// NoopAttacher does nothing.
type NoopAttacher struct{}

func (NoopAttacher) Attach() (bool, error) { return false, nil }
func (NoopAttacher) Detach()               {}

// OSThreadAttacher pins the delivering goroutine to its OS thread for the
// duration of each delivery, for callbacks that call into thread-affine
// native code.
type OSThreadAttacher struct{}

func (OSThreadAttacher) Attach() (bool, error) {
	runtime.LockOSThread()
	return true, nil
}

func (OSThreadAttacher) Detach() { runtime.UnlockOSThread() }
