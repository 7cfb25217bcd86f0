// Package displayrunner shows frames from many goroutines in native windows
// while every windowing call runs on one OS-thread-locked goroutine.
//
// Windowing toolkits require that windows are created, painted and destroyed
// on a single thread, and that the same thread keeps pumping the toolkit's
// event queue. Producers of frames (camera readers, decoders, renderers) are
// free-running goroutines. A Service joins the two: callers hold a Handle per
// window and post register, show and unregister requests; one event loop
// goroutine applies them in FIFO order against a Display backend and pumps
// its events between batches.
//
// # Quick Start
//
// Initialize the default service at application startup:
//
//	displayrunner.InitDefault(x11.New(x11.Options{}), nil)
//	defer displayrunner.ShutdownDefault()
//
// Open a window and feed it frames from any goroutine:
//
//	cam, err := displayrunner.Create("Cam 0")
//	if err != nil {
//		return err
//	}
//	defer cam.Close()
//
//	for frame := range frames {
//		if err := cam.Show(frame); err != nil {
//			return err
//		}
//	}
//
// # Key Concepts
//
// Handle: One window-owning caller. Register reserves a window name
// synchronously, so a duplicate name is reported to the caller that lost the
// race. Show copies the frame into the display layout before queueing it.
// Dropping a Handle without Close destroys its window once it is collected.
//
// Display: The backend contract. Backends live under display/: x11 for an
// X server, terminal for a tcell screen and headless for tests.
//
// Service: Owns the queue, the window registry and the event loop. The loop
// starts lazily on the first Register and runs until Stop, which drains
// queued work and tears every window down.
//
// # Thread Safety
//
// Every Handle and Service method is safe for concurrent use. Display methods
// are only ever called from the loop goroutine, which is locked to its OS
// thread for its whole life.
//
// For more details, see https://github.com/Swind/go-display-runner
package displayrunner
