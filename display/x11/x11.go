// Package x11 implements core.Display on an X11 server using xgb.
//
// Every method must be called from the event loop goroutine. Windows are
// top-level, managed by the window manager, titled with their registry name
// and sized to the frames they show.
package x11

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/dustin/go-humanize"

	"github.com/Swind/go-display-runner/core"
)

// Initial window size before the first frame arrives.
const (
	defaultWidth  = 320
	defaultHeight = 240
)

// ErrUnsupportedVisual is returned by Open when the root visual cannot take
// 32 bits-per-pixel ZPixmap images.
var ErrUnsupportedVisual = errors.New("x11: root visual is not 24/32-bit TrueColor")

// Options configures a Display.
type Options struct {
	// DisplayName selects the X server; empty means $DISPLAY.
	DisplayName string

	// Logger receives backend diagnostics. Defaults to a no-op logger.
	Logger core.Logger

	// OnCloseRequest is called on the loop goroutine when the user closes a
	// window from the window manager. The window stays open until its owner
	// unregisters it. Must not block.
	OnCloseRequest func(name string)
}

type window struct {
	id   xproto.Window
	gc   xproto.Gcontext
	name string

	// Size of the last frame; zero until one is shown
	width  int
	height int
	last   []byte // BGRX copy of the last frame, for Expose repaints
}

// Display is an X11 core.Display.
type Display struct {
	opts   Options
	logger core.Logger

	xu     *xgbutil.XUtil
	conn   *xgb.Conn
	screen *xproto.ScreenInfo

	wmProtocols xproto.Atom
	wmDelete    xproto.Atom
	maxRequest  int // bytes

	windows map[string]*window
	byID    map[xproto.Window]*window
}

var _ core.Display = (*Display)(nil)

// New creates an unopened Display.
func New(opts Options) *Display {
	logger := opts.Logger
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &Display{
		opts:    opts,
		logger:  logger,
		windows: make(map[string]*window),
		byID:    make(map[xproto.Window]*window),
	}
}

// Open connects to the X server.
func (d *Display) Open() error {
	xu, err := xgbutil.NewConnDisplay(d.opts.DisplayName)
	if err != nil {
		return fmt.Errorf("x11: connect: %w", err)
	}
	conn := xu.Conn()
	setup := xproto.Setup(conn)

	if !supports32bpp(setup, xu.Screen().RootDepth) {
		conn.Close()
		return ErrUnsupportedVisual
	}

	protocols, err := internAtom(conn, "WM_PROTOCOLS")
	if err != nil {
		conn.Close()
		return err
	}
	deleteWindow, err := internAtom(conn, "WM_DELETE_WINDOW")
	if err != nil {
		conn.Close()
		return err
	}

	d.xu = xu
	d.conn = conn
	d.screen = xu.Screen()
	d.wmProtocols = protocols
	d.wmDelete = deleteWindow
	d.maxRequest = int(setup.MaximumRequestLength) * 4

	d.logger.Info("x11 display opened",
		core.F("depth", d.screen.RootDepth),
		core.F("screen", fmt.Sprintf("%dx%d", d.screen.WidthInPixels, d.screen.HeightInPixels)),
	)
	return nil
}

// CreateWindow creates, titles and maps a window.
func (d *Display) CreateWindow(name string) error {
	if d.conn == nil {
		return errors.New("x11: display not open")
	}
	if _, ok := d.windows[name]; ok {
		return fmt.Errorf("x11: window %q already exists", name)
	}

	wid, err := xproto.NewWindowId(d.conn)
	if err != nil {
		return err
	}

	// Value list order follows the bit positions of the mask
	err = xproto.CreateWindowChecked(
		d.conn,
		d.screen.RootDepth,
		wid,
		d.screen.Root,
		0, 0,
		defaultWidth, defaultHeight,
		0,
		xproto.WindowClassInputOutput,
		d.screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{
			0, // back_pixel=black
			xproto.EventMaskExposure | xproto.EventMaskStructureNotify,
		},
	).Check()
	if err != nil {
		return fmt.Errorf("x11: create window %q: %w", name, err)
	}

	gc, err := xproto.NewGcontextId(d.conn)
	if err != nil {
		xproto.DestroyWindow(d.conn, wid)
		return err
	}
	err = xproto.CreateGCChecked(d.conn, gc, xproto.Drawable(wid),
		xproto.GcGraphicsExposures, []uint32{0}).Check()
	if err != nil {
		xproto.DestroyWindow(d.conn, wid)
		return fmt.Errorf("x11: create gc for %q: %w", name, err)
	}

	// Titles are best effort; a missing WM is not an error
	if err := ewmh.WmNameSet(d.xu, wid, name); err != nil {
		d.logger.Debug("ewmh title not set", core.F("window", name), core.F("error", err))
	}
	if err := icccm.WmNameSet(d.xu, wid, name); err != nil {
		d.logger.Debug("icccm title not set", core.F("window", name), core.F("error", err))
	}
	if err := icccm.WmProtocolsSet(d.xu, wid, []string{"WM_DELETE_WINDOW"}); err != nil {
		d.logger.Debug("WM_PROTOCOLS not set", core.F("window", name), core.F("error", err))
	}

	xproto.MapWindow(d.conn, wid)

	w := &window{id: wid, gc: gc, name: name}
	d.windows[name] = w
	d.byID[wid] = w
	return nil
}

// DestroyWindow destroys the window and frees its graphics context.
func (d *Display) DestroyWindow(name string) error {
	w, ok := d.windows[name]
	if !ok {
		return fmt.Errorf("x11: no window %q", name)
	}
	delete(d.windows, name)
	delete(d.byID, w.id)

	xproto.FreeGC(d.conn, w.gc)
	return xproto.DestroyWindowChecked(d.conn, w.id).Check()
}

// ShowFrame paints a BGR24 frame into the window, resizing it to the frame.
func (d *Display) ShowFrame(name string, frame *core.Frame) error {
	w, ok := d.windows[name]
	if !ok {
		return fmt.Errorf("x11: no window %q", name)
	}
	if frame.Format != core.FormatBGR24 {
		return fmt.Errorf("x11: %w: %s", core.ErrUnsupportedFormat, frame.Format)
	}
	if err := checkGeometry(frame.Width, frame.Height, d.maxRequest); err != nil {
		return fmt.Errorf("x11: %w: %w", core.ErrInvalidFrame, err)
	}
	if len(frame.Pix) != frame.Width*frame.Height*3 {
		return fmt.Errorf("x11: %w: buffer is %d bytes for %dx%d", core.ErrInvalidFrame, len(frame.Pix), frame.Width, frame.Height)
	}

	if frame.Width != w.width || frame.Height != w.height {
		d.resize(w, frame.Width, frame.Height)
	}
	w.last = bgrToBGRX(w.last, frame.Pix)
	d.paint(w)
	return nil
}

// Pump drains pending X events without blocking.
func (d *Display) Pump() error {
	if d.conn == nil {
		return errors.New("x11: display not open")
	}

	var firstErr error
	for {
		ev, xerr := d.conn.PollForEvent()
		if ev == nil && xerr == nil {
			return firstErr
		}
		if xerr != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("x11: %s", xerr.Error())
			}
			continue
		}
		d.handleEvent(ev)
	}
}

// Close destroys any window still open and disconnects.
func (d *Display) Close() error {
	if d.conn == nil {
		return nil
	}
	for name, w := range d.windows {
		xproto.FreeGC(d.conn, w.gc)
		xproto.DestroyWindow(d.conn, w.id)
		delete(d.windows, name)
		delete(d.byID, w.id)
	}
	d.conn.Close()
	d.conn = nil
	d.xu = nil
	return nil
}

func (d *Display) handleEvent(ev xgb.Event) {
	switch e := ev.(type) {
	case xproto.ExposeEvent:
		// Repaint once per burst of exposures
		if w, ok := d.byID[e.Window]; ok && e.Count == 0 {
			d.paint(w)
		}
	case xproto.ConfigureNotifyEvent:
		if w, ok := d.byID[e.Window]; ok {
			d.logger.Debug("window configured",
				core.F("window", w.name),
				core.F("size", fmt.Sprintf("%dx%d", e.Width, e.Height)),
			)
		}
	case xproto.ClientMessageEvent:
		w, ok := d.byID[e.Window]
		if !ok || e.Type != d.wmProtocols || len(e.Data.Data32) == 0 {
			return
		}
		if xproto.Atom(e.Data.Data32[0]) == d.wmDelete {
			d.logger.Info("window close requested", core.F("window", w.name))
			if d.opts.OnCloseRequest != nil {
				d.opts.OnCloseRequest(w.name)
			}
		}
	}
}

func (d *Display) resize(w *window, width, height int) {
	xproto.ConfigureWindow(d.conn, w.id,
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(width), uint32(height)},
	)

	// Keep the frame's aspect when the user resizes
	hints := &icccm.NormalHints{
		Flags:        icccm.SizeHintPAspect,
		MinAspectNum: uint(width),
		MinAspectDen: uint(height),
		MaxAspectNum: uint(width),
		MaxAspectDen: uint(height),
	}
	if err := icccm.WmNormalHintsSet(d.xu, w.id, hints); err != nil {
		d.logger.Debug("aspect hints not set", core.F("window", w.name), core.F("error", err))
	}

	d.logger.Debug("window resized",
		core.F("window", w.name),
		core.F("size", fmt.Sprintf("%dx%d", width, height)),
		core.F("frame_bytes", humanize.Bytes(uint64(width*height*3))),
	)
	w.width, w.height = width, height
}

// paint uploads the last frame in as many PutImage requests as the server's
// request size limit needs.
func (d *Display) paint(w *window) {
	if len(w.last) == 0 || w.width <= 0 || w.height <= 0 {
		return
	}
	stride := w.width * 4
	rows := rowsPerRequest(d.maxRequest, stride)
	if rows == 0 {
		return
	}

	for y := 0; y < w.height; y += rows {
		n := min(rows, w.height-y)
		xproto.PutImage(d.conn, xproto.ImageFormatZPixmap,
			xproto.Drawable(w.id), w.gc,
			uint16(w.width), uint16(n),
			0, int16(y),
			0, d.screen.RootDepth,
			w.last[y*stride:(y+n)*stride],
		)
	}
}

func internAtom(conn *xgb.Conn, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("x11: intern %s: %w", name, err)
	}
	return reply.Atom, nil
}
