// Package headless provides a Display that draws nothing and records every
// call it receives, including the goroutine each call ran on.
//
// It backs the "headless" CLI backend and the engine's tests.
package headless

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Swind/go-display-runner/core"
)

// Op names a Display method.
type Op string

const (
	OpOpen    Op = "open"
	OpCreate  Op = "create"
	OpDestroy Op = "destroy"
	OpShow    Op = "show"
	OpPump    Op = "pump"
	OpClose   Op = "close"
)

// Call is one recorded Display invocation.
type Call struct {
	Op        Op
	Name      string
	Frame     *core.Frame
	Goroutine uint64
	At        time.Time
}

// Display records calls. It is safe to inspect from other goroutines while
// the event loop drives it.
type Display struct {
	mu      sync.Mutex
	calls   []Call
	windows map[string]*core.Frame
	open    bool
	pumps   int

	// Optional failure injection, consulted on the loop goroutine.
	OpenErr   error
	CreateErr func(name string) error
	ShowErr   func(name string) error
	PumpErr   func() error

	// RecordPumps keeps OpPump entries in Calls. Off by default since the
	// loop pumps every poll interval.
	RecordPumps bool
}

var _ core.Display = (*Display)(nil)

// New creates an empty recorder.
func New() *Display {
	return &Display{windows: make(map[string]*core.Frame)}
}

func (d *Display) Open() error {
	d.record(Call{Op: OpOpen})
	if d.OpenErr != nil {
		return d.OpenErr
	}
	d.mu.Lock()
	d.open = true
	d.mu.Unlock()
	return nil
}

func (d *Display) CreateWindow(name string) error {
	d.record(Call{Op: OpCreate, Name: name})
	if d.CreateErr != nil {
		if err := d.CreateErr(name); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return fmt.Errorf("headless: create %q on closed display", name)
	}
	if _, ok := d.windows[name]; ok {
		return fmt.Errorf("headless: window %q exists", name)
	}
	d.windows[name] = nil
	return nil
}

func (d *Display) DestroyWindow(name string) error {
	d.record(Call{Op: OpDestroy, Name: name})

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.windows[name]; !ok {
		return fmt.Errorf("headless: no window %q", name)
	}
	delete(d.windows, name)
	return nil
}

func (d *Display) ShowFrame(name string, frame *core.Frame) error {
	d.record(Call{Op: OpShow, Name: name, Frame: frame})
	if d.ShowErr != nil {
		if err := d.ShowErr(name); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.windows[name]; !ok {
		return fmt.Errorf("headless: no window %q", name)
	}
	d.windows[name] = frame
	return nil
}

func (d *Display) Pump() error {
	d.mu.Lock()
	d.pumps++
	keep := d.RecordPumps
	d.mu.Unlock()

	if keep {
		d.record(Call{Op: OpPump})
	}
	if d.PumpErr != nil {
		return d.PumpErr()
	}
	return nil
}

func (d *Display) Close() error {
	d.record(Call{Op: OpClose})
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
	return nil
}

// Calls returns a copy of every recorded call in order.
func (d *Display) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Count returns how many calls of op were made for name. An empty name
// matches every call of op.
func (d *Display) Count(op Op, name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Op == op && (name == "" || c.Name == name) {
			n++
		}
	}
	return n
}

// Windows returns the names of the windows currently open, sorted.
func (d *Display) Windows() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.windows))
	for name := range d.windows {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LastFrame returns the most recent frame shown in name.
func (d *Display) LastFrame(name string) (*core.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.windows[name]
	return f, ok && f != nil
}

// Pumps returns the number of Pump calls so far.
func (d *Display) Pumps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pumps
}

// IsOpen reports whether Open succeeded and Close has not been called.
func (d *Display) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Goroutines returns the distinct goroutine ids that made recorded calls.
func (d *Display) Goroutines() map[uint64]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint64]int)
	for _, c := range d.calls {
		out[c.Goroutine]++
	}
	return out
}

func (d *Display) record(c Call) {
	c.Goroutine = goroutineID()
	c.At = time.Now()
	d.mu.Lock()
	d.calls = append(d.calls, c)
	d.mu.Unlock()
}

// goroutineID parses "goroutine 123 [running]:" from the current stack.
func goroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	var id uint64
	for i := len("goroutine "); i < len(b); i++ {
		if b[i] >= '0' && b[i] <= '9' {
			id = id*10 + uint64(b[i]-'0')
		} else {
			break
		}
	}
	return id
}
