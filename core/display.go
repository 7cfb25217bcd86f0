package core

// Display is the window system the event loop drives.
//
// Implementations need not be safe for concurrent use: every method is called
// from the event loop goroutine, which stays locked to one OS thread between
// Open and Close. Windows are addressed by name.
type Display interface {
	// Open prepares the window system. Called once, on the loop thread,
	// before any other method.
	Open() error

	// CreateWindow creates and maps a window titled name.
	CreateWindow(name string) error

	// DestroyWindow tears down the window created under name.
	DestroyWindow(name string) error

	// ShowFrame repaints the named window. frame is FormatBGR24 and must not be
	// modified; implementations may keep it for later repaints.
	ShowFrame(name string, frame *Frame) error

	// Pump runs one non-blocking step of the window system's event processing.
	Pump() error

	// Close releases the window system. Called once, on the loop thread,
	// after the last window has been destroyed.
	Close() error
}
