package core

import "runtime"

// Window is the capability a window owner needs: open, repaint, close, and
// ask for its name. Host bindings adapt their objects to it.
type Window interface {
	Register(name string) error
	Show(frame *Frame) error
	Unregister()
	WindowName() string
}

var _ Window = (*Handle)(nil)

// Handle is one owner's view of the Service. Its methods are safe to call
// from any goroutine; none of them wait for the event loop.
type Handle struct {
	svc   *Service
	owner OwnerID
}

// handleRef is what the cleanup keeps alive; it must not point at the Handle.
type handleRef struct {
	svc   *Service
	owner OwnerID
}

func newHandle(svc *Service) *Handle {
	h := &Handle{svc: svc, owner: NewOwnerID()}

	// A handle dropped without Close still gives its window back
	runtime.AddCleanup(h, func(ref handleRef) {
		ref.svc.unregister(ref.owner)
	}, handleRef{svc: svc, owner: h.owner})

	return h
}

// Owner returns the identity this handle registers windows under.
func (h *Handle) Owner() OwnerID {
	return h.owner
}

// Register reserves name and queues creation of the window. The loop is
// started first if it has not been yet.
//
// Fails with ErrEmptyName, ErrDuplicateName, ErrDuplicateOwner or
// ErrShutdownInProgress, in which case nothing was queued.
func (h *Handle) Register(name string) error {
	return h.svc.register(h.owner, name)
}

// Show queues frame for display. frame must be FormatRGB24; it is copied, so
// the caller may reuse its buffer as soon as Show returns.
//
// Fails with ErrUnsupportedFormat, ErrInvalidFrame, ErrUnknownOwner or
// ErrShutdownInProgress, in which case nothing was queued.
func (h *Handle) Show(frame *Frame) error {
	return h.svc.show(h.owner, frame)
}

// Unregister releases the window name and queues destruction of the window.
// It does not wait and is safe to call more than once.
func (h *Handle) Unregister() {
	h.svc.unregister(h.owner)
}

// Close is Unregister in io.Closer form.
func (h *Handle) Close() error {
	h.Unregister()
	return nil
}

// WindowName returns the name this handle currently holds, or "".
func (h *Handle) WindowName() string {
	return h.svc.windowName(h.owner)
}
