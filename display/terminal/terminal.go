// Package terminal implements core.Display on a character terminal.
//
// Windows are laid out as equal-width columns in creation order, each with a
// title row. Frames are downscaled to fit and drawn with upper-half-block
// cells, two pixels per cell, in true colour.
package terminal

import (
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/Swind/go-display-runner/core"
)

const halfBlock = '▀'

// Options configures a Display.
type Options struct {
	// Screen overrides the terminal; tests pass a simulation screen.
	Screen tcell.Screen

	// Logger receives backend diagnostics. Defaults to a no-op logger.
	Logger core.Logger

	// OnQuit is called on the loop goroutine when the user presses Esc,
	// Ctrl-C or q. Must not block.
	OnQuit func()
}

type pane struct {
	name  string
	frame *core.Frame
}

// Display is a tcell core.Display.
type Display struct {
	opts   Options
	logger core.Logger

	screen tcell.Screen
	events chan tcell.Event
	quit   chan struct{}

	panes []*pane
	dirty bool
}

var _ core.Display = (*Display)(nil)

// New creates an unopened Display.
func New(opts Options) *Display {
	logger := opts.Logger
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &Display{opts: opts, logger: logger}
}

// Open takes over the terminal.
func (d *Display) Open() error {
	screen := d.opts.Screen
	if screen == nil {
		var err error
		if screen, err = tcell.NewScreen(); err != nil {
			return fmt.Errorf("terminal: %w", err)
		}
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal: init: %w", err)
	}
	screen.HideCursor()
	screen.Clear()

	d.screen = screen
	d.events = make(chan tcell.Event, 16)
	d.quit = make(chan struct{})
	d.dirty = true

	// PollEvent blocks, so it gets its own goroutine; Pump only reads the channel
	go func(screen tcell.Screen, events chan<- tcell.Event, quit <-chan struct{}) {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}(screen, d.events, d.quit)

	w, h := screen.Size()
	d.logger.Info("terminal display opened", core.F("size", fmt.Sprintf("%dx%d", w, h)))
	return nil
}

// CreateWindow adds a column.
func (d *Display) CreateWindow(name string) error {
	if d.screen == nil {
		return errors.New("terminal: display not open")
	}
	if d.find(name) >= 0 {
		return fmt.Errorf("terminal: window %q already exists", name)
	}
	d.panes = append(d.panes, &pane{name: name})
	d.dirty = true
	return nil
}

// DestroyWindow removes a column.
func (d *Display) DestroyWindow(name string) error {
	i := d.find(name)
	if i < 0 {
		return fmt.Errorf("terminal: no window %q", name)
	}
	d.panes = append(d.panes[:i], d.panes[i+1:]...)
	d.dirty = true
	return nil
}

// ShowFrame records frame for the next redraw.
func (d *Display) ShowFrame(name string, frame *core.Frame) error {
	i := d.find(name)
	if i < 0 {
		return fmt.Errorf("terminal: no window %q", name)
	}
	if frame.Format != core.FormatBGR24 {
		return fmt.Errorf("terminal: %w: %s", core.ErrUnsupportedFormat, frame.Format)
	}
	d.panes[i].frame = frame
	d.dirty = true
	return nil
}

// Pump handles pending terminal events and redraws if anything changed.
func (d *Display) Pump() error {
	if d.screen == nil {
		return errors.New("terminal: display not open")
	}

drain:
	for {
		select {
		case ev := <-d.events:
			d.handleEvent(ev)
		default:
			break drain
		}
	}

	if d.dirty {
		d.render()
		d.screen.Show()
		d.dirty = false
	}
	return nil
}

// Close restores the terminal.
func (d *Display) Close() error {
	if d.screen == nil {
		return nil
	}
	close(d.quit)
	d.screen.Fini()
	d.screen = nil
	d.panes = nil
	return nil
}

func (d *Display) handleEvent(ev tcell.Event) {
	switch e := ev.(type) {
	case *tcell.EventResize:
		d.screen.Sync()
		d.dirty = true
	case *tcell.EventKey:
		if e.Key() == tcell.KeyEscape || e.Key() == tcell.KeyCtrlC || e.Rune() == 'q' {
			d.logger.Info("terminal quit requested")
			if d.opts.OnQuit != nil {
				d.opts.OnQuit()
			}
		}
	}
}

func (d *Display) find(name string) int {
	for i, p := range d.panes {
		if p.name == name {
			return i
		}
	}
	return -1
}

func (d *Display) render() {
	d.screen.Clear()
	width, height := d.screen.Size()
	if len(d.panes) == 0 || width <= 0 || height <= 1 {
		return
	}

	colWidth := width / len(d.panes)
	for i, p := range d.panes {
		x0 := i * colWidth
		// One blank column between panes
		w := max(colWidth-1, 1)
		drawTitle(d.screen, x0, w, p.name)
		if p.frame != nil {
			drawFrame(d.screen, x0, 1, w, height-1, p.frame)
		}
	}
}

func drawTitle(s tcell.Screen, x0, width int, title string) {
	style := tcell.StyleDefault.Reverse(true)
	col := 0
	for _, r := range title {
		if col >= width {
			break
		}
		s.SetContent(x0+col, 0, r, nil, style)
		col++
	}
	for ; col < width; col++ {
		s.SetContent(x0+col, 0, ' ', nil, style)
	}
}

// drawFrame scales frame into a cols x rows cell box at (x0, y0), keeping its
// aspect ratio. Each cell covers two vertically stacked pixels.
func drawFrame(s tcell.Screen, x0, y0, cols, rows int, frame *core.Frame) {
	outW, outH := fitSize(frame.Width, frame.Height, cols, rows*2)
	if outW == 0 || outH == 0 {
		return
	}

	for cy := 0; cy*2 < outH; cy++ {
		for cx := 0; cx < outW; cx++ {
			top := sample(frame, cx, cy*2, outW, outH)
			style := tcell.StyleDefault.Foreground(top)
			if cy*2+1 < outH {
				style = style.Background(sample(frame, cx, cy*2+1, outW, outH))
			}
			s.SetContent(x0+cx, y0+cy, halfBlock, nil, style)
		}
	}
}

// fitSize scales w x h down (never up) to fit inside maxW x maxH.
func fitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	// Compare w/maxW against h/maxH without floats
	if w*maxH >= h*maxW {
		return maxW, max(h*maxW/w, 1)
	}
	return max(w*maxH/h, 1), maxH
}

// sample returns the nearest source pixel for output pixel (x, y).
func sample(frame *core.Frame, x, y, outW, outH int) tcell.Color {
	sx := x * frame.Width / outW
	sy := y * frame.Height / outH
	i := (sy*frame.Width + sx) * 3
	// BGR24
	return tcell.NewRGBColor(int32(frame.Pix[i+2]), int32(frame.Pix[i+1]), int32(frame.Pix[i]))
}
