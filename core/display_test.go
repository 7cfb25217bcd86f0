package core

import (
	"fmt"
	"sync"
	"time"
)

// fakeDisplay is a minimal in-package Display for registry and loop tests.
type fakeDisplay struct {
	mu        sync.Mutex
	windows   map[string]int // name -> frames shown
	created   []string
	destroyed []string
	pumps     int
	closed    bool

	createErr    error
	showPanic    bool
	createPanic  bool
	pumpPanic    bool
	destroyPanic string // window name
	closePanic   bool
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{windows: make(map[string]int)}
}

func (d *fakeDisplay) Open() error { return nil }

func (d *fakeDisplay) CreateWindow(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createPanic {
		panic("create exploded")
	}
	if d.createErr != nil {
		return d.createErr
	}
	if _, ok := d.windows[name]; ok {
		return fmt.Errorf("window %q exists", name)
	}
	d.windows[name] = 0
	d.created = append(d.created, name)
	return nil
}

func (d *fakeDisplay) DestroyWindow(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if name == d.destroyPanic {
		panic("destroy exploded")
	}
	if _, ok := d.windows[name]; !ok {
		return fmt.Errorf("no window %q", name)
	}
	delete(d.windows, name)
	d.destroyed = append(d.destroyed, name)
	return nil
}

func (d *fakeDisplay) ShowFrame(name string, frame *Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.showPanic {
		panic("show exploded")
	}
	if _, ok := d.windows[name]; !ok {
		return fmt.Errorf("no window %q", name)
	}
	d.windows[name]++
	return nil
}

func (d *fakeDisplay) Pump() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pumps++
	if d.pumpPanic {
		panic("pump exploded")
	}
	return nil
}

func (d *fakeDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.closePanic {
		panic("close exploded")
	}
	return nil
}

func (d *fakeDisplay) frames(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.windows[name]
}

func (d *fakeDisplay) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func rgbFrame(w, h int) *Frame {
	return &Frame{Width: w, Height: h, Format: FormatRGB24, Pix: make([]byte, w*h*3)}
}

func testConfig() *Config {
	return &Config{
		Name:         "test",
		PollInterval: 2 * time.Millisecond,
		Logger:       NewNoOpLogger(),
	}
}
