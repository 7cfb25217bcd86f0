package core_test

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/Swind/go-display-runner/core"
	"github.com/Swind/go-display-runner/display/headless"
	"github.com/Swind/go-display-runner/display/terminal"
)

func newTestService(t *testing.T) (*core.Service, *headless.Display) {
	t.Helper()
	d := headless.New()
	svc := core.NewService(d, &core.Config{
		Name:         "test",
		PollInterval: 2 * time.Millisecond,
		Logger:       core.NewNoOpLogger(),
	})
	t.Cleanup(svc.Stop)
	return svc, d
}

func waitIdle(t *testing.T, svc *core.Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}
}

func rgbFrame(w, h int, fill byte) *core.Frame {
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = fill
	}
	return &core.Frame{Width: w, Height: h, Format: core.FormatRGB24, Pix: pix}
}

// TestService_CreateThenWindowName verifies the name is visible immediately
// Given: a fresh service
// When: Create("Cam 0") returns
// Then: WindowName on the handle is "Cam 0" without waiting for the loop
func TestService_CreateThenWindowName(t *testing.T) {
	svc, _ := newTestService(t)

	h, err := svc.Create("Cam 0")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if got := h.WindowName(); got != "Cam 0" {
		t.Errorf("WindowName = %q, want %q", got, "Cam 0")
	}
}

// TestService_ConcurrentDuplicateCreate verifies exactly one winner per name
// Given: 16 goroutines racing Create("X")
// When: all calls return
// Then: one succeeds, the rest fail with ErrDuplicateName, and one window X exists
func TestService_ConcurrentDuplicateCreate(t *testing.T) {
	svc, d := newTestService(t)

	const racers = 16
	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	start := make(chan struct{})

	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Create("X")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, core.ErrDuplicateName):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	waitIdle(t, svc)

	if ok.Load() != 1 || dup.Load() != racers-1 {
		t.Fatalf("ok = %d, dup = %d; want 1 and %d", ok.Load(), dup.Load(), racers-1)
	}
	windows := svc.Windows()
	if len(windows) != 1 || windows[0].Name != "X" || windows[0].State != core.StateActive {
		t.Errorf("registry = %+v, want one active X", windows)
	}
	if n := d.Count(headless.OpCreate, "X"); n != 1 {
		t.Errorf("display created X %d times, want 1", n)
	}
}

// TestService_CreateEmptyName verifies empty names never reach the loop
func TestService_CreateEmptyName(t *testing.T) {
	svc, d := newTestService(t)

	h, err := svc.Create("")
	if !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("err = %v, want ErrEmptyName", err)
	}
	if h != nil {
		t.Error("handle returned on failure")
	}
	if svc.Loop().State() != core.LoopIdle {
		t.Errorf("loop state = %s, empty name should not start it", svc.Loop().State())
	}
	if len(svc.Windows()) != 0 || d.Count(headless.OpCreate, "") != 0 {
		t.Error("a window was created")
	}
	if svc.Stats().Rejected != 1 {
		t.Errorf("rejected = %d, want 1", svc.Stats().Rejected)
	}
}

// TestService_DestroyReleasesName verifies a closed handle's name can be reused
// Given: handle A holding "cam"
// When: A is closed and B creates "cam" immediately
// Then: B succeeds and the display sees create, destroy, create in that order
func TestService_DestroyReleasesName(t *testing.T) {
	svc, d := newTestService(t)

	a, err := svc.Create("cam")
	if err != nil {
		t.Fatalf("Create A: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close A: %v", err)
	}
	if got := a.WindowName(); got != "" {
		t.Errorf("closed handle WindowName = %q, want empty", got)
	}

	b, err := svc.Create("cam")
	if err != nil {
		t.Fatalf("Create B after release: %v", err)
	}
	waitIdle(t, svc)

	var ops []headless.Op
	for _, c := range d.Calls() {
		if c.Name == "cam" {
			ops = append(ops, c.Op)
		}
	}
	want := []headless.Op{headless.OpCreate, headless.OpDestroy, headless.OpCreate}
	if fmt.Sprint(ops) != fmt.Sprint(want) {
		t.Errorf("display ops = %v, want %v", ops, want)
	}
	if name, ok := svc.Registry().LookupName(b.Owner()); !ok || name != "cam" {
		t.Errorf("registry name for B = %q, %v", name, ok)
	}
	if _, ok := svc.Registry().LookupName(a.Owner()); ok {
		t.Error("registry still holds A")
	}
}

// TestService_ShowWithoutWindow verifies show before create and after destroy
// Main test items:
// 1. Show on a handle that never registered fails with ErrUnknownOwner
// 2. Show after Close fails with ErrUnknownOwner
// 3. Neither touches the registry or the display
func TestService_ShowWithoutWindow(t *testing.T) {
	svc, d := newTestService(t)

	h := svc.NewHandle()
	if err := h.Show(rgbFrame(2, 2, 0)); !errors.Is(err, core.ErrUnknownOwner) {
		t.Errorf("show before register err = %v, want ErrUnknownOwner", err)
	}

	if err := h.Register("cam"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	h.Unregister()
	if err := h.Show(rgbFrame(2, 2, 0)); !errors.Is(err, core.ErrUnknownOwner) {
		t.Errorf("show after unregister err = %v, want ErrUnknownOwner", err)
	}
	waitIdle(t, svc)

	if n := d.Count(headless.OpShow, ""); n != 0 {
		t.Errorf("display show calls = %d, want 0", n)
	}
	if len(svc.Windows()) != 0 {
		t.Errorf("registry = %+v, want empty", svc.Windows())
	}
}

// TestService_ShowUnsupportedFormat verifies format rejection enqueues nothing
func TestService_ShowUnsupportedFormat(t *testing.T) {
	svc, d := newTestService(t)
	h, err := svc.Create("cam")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitIdle(t, svc)
	appliedBefore := svc.Stats().Applied

	for _, format := range []core.PixelFormat{core.FormatBGR24, core.FormatRGBA32, core.FormatGray8, core.FormatYCbCr420} {
		frame := &core.Frame{Width: 1, Height: 1, Format: format, Pix: make([]byte, 4)}
		if err := h.Show(frame); !errors.Is(err, core.ErrUnsupportedFormat) {
			t.Errorf("%s: err = %v, want ErrUnsupportedFormat", format, err)
		}
	}
	if svc.Stats().Pending != 0 {
		t.Errorf("pending = %d, want 0", svc.Stats().Pending)
	}
	waitIdle(t, svc)

	if n := d.Count(headless.OpShow, ""); n != 0 {
		t.Errorf("display show calls = %d, want 0", n)
	}
	if got := svc.Stats().Applied; got != appliedBefore {
		t.Errorf("applied changed from %d to %d", appliedBefore, got)
	}
}

// TestService_ShowOversizedFrame verifies frames too large to address never reach the display
// Given: a service on the terminal backend, which samples every pixel it draws
// When: frames whose size overflows or exceeds MaxFrameDimension are shown
// Then: Show returns ErrInvalidFrame and the loop keeps drawing valid frames
func TestService_ShowOversizedFrame(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	svc := core.NewService(terminal.New(terminal.Options{Screen: screen}), &core.Config{
		Name:         "test",
		PollInterval: 2 * time.Millisecond,
		Logger:       core.NewNoOpLogger(),
	})
	t.Cleanup(svc.Stop)

	h, err := svc.Create("cam")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	oversized := []*core.Frame{
		{Width: 1 << 32, Height: 1 << 32, Format: core.FormatRGB24},
		{Width: core.MaxFrameDimension + 1, Height: 1, Format: core.FormatRGB24, Pix: make([]byte, (core.MaxFrameDimension+1)*3)},
	}
	for _, frame := range oversized {
		if err := h.Show(frame); !errors.Is(err, core.ErrInvalidFrame) {
			t.Errorf("%dx%d: err = %v, want ErrInvalidFrame", frame.Width, frame.Height, err)
		}
	}

	if err := h.Show(rgbFrame(4, 4, 200)); err != nil {
		t.Fatalf("Show valid frame: %v", err)
	}
	waitIdle(t, svc)

	stats := svc.Stats()
	if stats.State != core.LoopRunning || stats.Failed != 0 {
		t.Errorf("state = %s, failed = %d; want running with no failures", stats.State, stats.Failed)
	}
	if stats.Rejected != 2 {
		t.Errorf("rejected = %d, want 2", stats.Rejected)
	}
}

// TestService_ManyDistinctCreates verifies N concurrent owners with distinct names
func TestService_ManyDistinctCreates(t *testing.T) {
	svc, d := newTestService(t)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Create(fmt.Sprintf("win-%02d", i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Create failed: %v", err)
	}
	waitIdle(t, svc)

	windows := svc.Windows()
	if len(windows) != n {
		t.Fatalf("registry size = %d, want %d", len(windows), n)
	}
	seen := make(map[string]bool)
	for _, w := range windows {
		if seen[w.Name] {
			t.Errorf("name %q appears twice", w.Name)
		}
		seen[w.Name] = true
	}
	if got := len(d.Windows()); got != n {
		t.Errorf("display windows = %d, want %d", got, n)
	}
}

// TestService_EndToEndCam verifies the full lifecycle of one camera window
// Given: window "Cam 0"
// When: three 640x480 frames are shown back to back, then the handle is closed
// Then: the frames apply in order, the record is gone and the window is destroyed once
func TestService_EndToEndCam(t *testing.T) {
	svc, d := newTestService(t)

	h, err := svc.Create("Cam 0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := byte(1); i <= 3; i++ {
		if err := h.Show(rgbFrame(640, 480, i)); err != nil {
			t.Fatalf("Show %d: %v", i, err)
		}
	}
	owner := h.Owner()
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	waitIdle(t, svc)

	var fills []byte
	for _, c := range d.Calls() {
		if c.Op == headless.OpShow && c.Name == "Cam 0" {
			if c.Frame.Format != core.FormatBGR24 || c.Frame.Width != 640 || c.Frame.Height != 480 {
				t.Fatalf("frame reached display as %dx%d %s", c.Frame.Width, c.Frame.Height, c.Frame.Format)
			}
			fills = append(fills, c.Frame.Pix[0])
		}
	}
	if fmt.Sprint(fills) != fmt.Sprint([]byte{1, 2, 3}) {
		t.Errorf("frames applied as %v, want [1 2 3]", fills)
	}
	if _, ok := svc.Registry().LookupName(owner); ok {
		t.Error("registry still has the owner")
	}
	if n := d.Count(headless.OpDestroy, "Cam 0"); n != 1 {
		t.Errorf("destroy count = %d, want 1", n)
	}

	// Stopping later must not destroy it a second time
	svc.Stop()
	if n := d.Count(headless.OpDestroy, "Cam 0"); n != 1 {
		t.Errorf("destroy count after Stop = %d, want 1", n)
	}
}

// TestService_ThreadAffinity verifies every display call runs on one goroutine
// Given: callers on many goroutines
// When: they create, show and close windows
// Then: the display saw exactly one goroutine, and not any caller's
func TestService_ThreadAffinity(t *testing.T) {
	svc, d := newTestService(t)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := svc.Create(fmt.Sprintf("w%d", i))
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			for range 5 {
				_ = h.Show(rgbFrame(4, 4, byte(i)))
			}
			h.Close()
		}(i)
	}
	wg.Wait()
	svc.Stop()

	if gs := d.Goroutines(); len(gs) != 1 {
		t.Errorf("display called from %d goroutines, want 1", len(gs))
	}
}

// TestService_StopDrainsAndRejects verifies the shutdown policy
// Main test items:
// 1. Shows queued before Stop are all applied
// 2. Remaining windows are destroyed and the display closed
// 3. Calls after Stop fail with ErrShutdownInProgress
func TestService_StopDrainsAndRejects(t *testing.T) {
	d := headless.New()
	svc := core.NewService(d, &core.Config{
		PollInterval: time.Hour,
		Logger:       core.NewNoOpLogger(),
	})

	h, err := svc.Create("cam")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for range 20 {
		if err := h.Show(rgbFrame(8, 8, 7)); err != nil {
			t.Fatalf("Show: %v", err)
		}
	}

	svc.Stop()

	if n := d.Count(headless.OpShow, "cam"); n != 20 {
		t.Errorf("applied shows = %d, want 20", n)
	}
	if n := d.Count(headless.OpDestroy, "cam"); n != 1 {
		t.Errorf("destroy count = %d, want 1", n)
	}
	if d.IsOpen() {
		t.Error("display left open")
	}
	if svc.Loop().State() != core.LoopStopped {
		t.Errorf("loop state = %s, want stopped", svc.Loop().State())
	}

	if err := h.Show(rgbFrame(8, 8, 7)); !errors.Is(err, core.ErrShutdownInProgress) {
		t.Errorf("show after stop err = %v, want ErrShutdownInProgress", err)
	}
	if _, err := svc.Create("late"); !errors.Is(err, core.ErrShutdownInProgress) {
		t.Errorf("create after stop err = %v, want ErrShutdownInProgress", err)
	}
	h.Close() // must not panic or block
}

// TestService_StopBeforeStart verifies a service stopped while Idle never opens the display
// Given: a service whose loop has not started
// When: Stop is called and a window is then requested
// Then: Create returns ErrShutdownInProgress, the loop stays Idle and the display is untouched
func TestService_StopBeforeStart(t *testing.T) {
	svc, d := newTestService(t)

	svc.Stop()

	if _, err := svc.Create("cam"); !errors.Is(err, core.ErrShutdownInProgress) {
		t.Errorf("Create after Stop err = %v, want ErrShutdownInProgress", err)
	}
	if state := svc.Loop().State(); state != core.LoopIdle {
		t.Errorf("loop state = %s, want idle", state)
	}
	if n := d.Count(headless.OpOpen, ""); n != 0 {
		t.Errorf("display opened %d times after Stop", n)
	}
}

// TestService_OpenFailure verifies a broken display surfaces on Register
func TestService_OpenFailure(t *testing.T) {
	d := headless.New()
	d.OpenErr = errors.New("no X server")
	svc := core.NewService(d, &core.Config{Logger: core.NewNoOpLogger()})
	defer svc.Stop()

	if _, err := svc.Create("cam"); err == nil || !errors.Is(err, d.OpenErr) {
		t.Fatalf("err = %v, want wrapped open error", err)
	}
	if _, err := svc.Create("cam"); err == nil {
		t.Error("second Create succeeded on a dead display")
	}
}

// TestService_AsyncFailureIsNotFatal verifies a create failure on the loop is contained
// Given: a display that refuses to create window "bad"
// When: "bad" and "good" are created and shown
// Then: only "good" is in the registry, and the failure is counted not returned
func TestService_AsyncFailureIsNotFatal(t *testing.T) {
	d := headless.New()
	d.CreateErr = func(name string) error {
		if name == "bad" {
			return errors.New("refused")
		}
		return nil
	}
	svc := core.NewService(d, &core.Config{PollInterval: 2 * time.Millisecond, Logger: core.NewNoOpLogger()})
	defer svc.Stop()

	bad, err := svc.Create("bad")
	if err != nil {
		t.Fatalf("Create bad returned %v; async failures are not reported to callers", err)
	}
	good, err := svc.Create("good")
	if err != nil {
		t.Fatalf("Create good: %v", err)
	}
	_ = bad.Show(rgbFrame(1, 1, 0))
	_ = good.Show(rgbFrame(1, 1, 0))
	waitIdle(t, svc)

	windows := svc.Windows()
	if len(windows) != 1 || windows[0].Name != "good" || windows[0].Frames != 1 {
		t.Errorf("registry = %+v, want only good with one frame", windows)
	}
	if stats := svc.Stats(); stats.Failed != 2 {
		t.Errorf("failed = %d, want 2 (create and show of bad)", stats.Failed)
	}

	// The failed owner still holds its reservation until it lets go
	if _, err := svc.Create("bad"); !errors.Is(err, core.ErrDuplicateName) {
		t.Errorf("Create bad while reserved err = %v, want ErrDuplicateName", err)
	}
	bad.Close()
	if _, err := svc.Create("bad"); err != nil {
		t.Errorf("Create bad after close: %v", err)
	}
}

// TestService_DroppedHandleReleasesWindow verifies the GC cleanup path
// Given: a handle that is registered and then dropped without Close
// When: the garbage collector reclaims it
// Then: its name is released and the window is destroyed
func TestService_DroppedHandleReleasesWindow(t *testing.T) {
	svc, d := newTestService(t)

	func() {
		if _, err := svc.Create("orphan"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for d.Count(headless.OpDestroy, "orphan") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dropped handle never released its window")
		}
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := svc.Create("orphan"); err != nil {
		t.Errorf("name not reusable after cleanup: %v", err)
	}
}

// TestService_Stats verifies counters and state reporting
func TestService_Stats(t *testing.T) {
	svc, _ := newTestService(t)

	if s := svc.Stats(); s.State != core.LoopIdle || s.Windows != 0 {
		t.Fatalf("initial stats = %+v", s)
	}

	h, err := svc.Create("cam")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = h.Show(rgbFrame(2, 2, 1))
	waitIdle(t, svc)

	s := svc.Stats()
	if s.State != core.LoopRunning {
		t.Errorf("state = %s, want running", s.State)
	}
	if s.Windows != 1 || s.Reserved != 1 {
		t.Errorf("windows = %d, reserved = %d; want 1, 1", s.Windows, s.Reserved)
	}
	if s.Applied != 2 {
		t.Errorf("applied = %d, want 2", s.Applied)
	}
	if s.LastTaskKind != core.KindShow || s.LastTaskAt.IsZero() {
		t.Errorf("last task = %s at %v", s.LastTaskKind, s.LastTaskAt)
	}
	if recent := svc.RecentTasks(1); len(recent) != 1 || recent[0].Kind != core.KindShow {
		t.Errorf("recent = %+v", recent)
	}
}
