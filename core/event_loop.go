package core

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// EventLoop binds a dedicated goroutine, locked to one OS thread, to a Display.
// It is the only goroutine that ever touches the Display or mutates the
// WindowRegistry.
//
// Each iteration:
// 1. Waits for a queue signal, the poll interval, or the stop signal
// 2. Drains the TaskQueue and applies every task in order
// 3. Runs exactly one Display.Pump step
// 4. Exits if stop was requested
//
// On exit it applies whatever is still queued, destroys the remaining windows,
// pumps once more and closes the Display.
type EventLoop struct {
	name     string
	queue    *TaskQueue
	registry *WindowRegistry
	display  Display

	pollInterval time.Duration
	coalesce     bool

	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
	history      *executionHistory

	// Lifecycle control
	mu      sync.Mutex // serializes Start/Stop
	state   atomic.Int32
	stopCh  chan struct{}
	stopped chan struct{}
	openErr error

	// Counters
	applied   atomic.Uint64
	failed    atomic.Uint64
	coalesced atomic.Uint64
	pumps     atomic.Uint64
	pumpErrs  atomic.Uint64
	lastKind  atomic.Int32
	lastAt    atomic.Int64

	// Touched only on the loop goroutine
	pumpFailing bool
}

// NewEventLoop creates an Idle loop. Nothing runs until Start.
func NewEventLoop(queue *TaskQueue, registry *WindowRegistry, display Display, cfg *Config) *EventLoop {
	c := cfg.withDefaults()
	return &EventLoop{
		name:         c.Name,
		queue:        queue,
		registry:     registry,
		display:      display,
		pollInterval: c.PollInterval,
		coalesce:     c.CoalesceShows,
		logger:       c.Logger,
		metrics:      c.Metrics,
		panicHandler: c.PanicHandler,
		history:      newExecutionHistory(c.HistorySize),
		stopCh:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

// Name returns the loop name used in logs and metrics.
func (l *EventLoop) Name() string {
	return l.name
}

// State returns the current lifecycle state.
func (l *EventLoop) State() LoopState {
	return LoopState(l.state.Load())
}

// Done is closed once the loop goroutine has exited.
func (l *EventLoop) Done() <-chan struct{} {
	return l.stopped
}

// Start moves the loop from Idle to Running. It spawns the loop goroutine and
// waits until the Display has been opened on it.
//
// Returns ErrLoopNotIdle if the loop already left Idle, or the Display.Open
// error, in which case the loop ends up Stopped.
func (l *EventLoop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State() != LoopIdle {
		return ErrLoopNotIdle
	}

	ready := make(chan error, 1)
	go l.run(ready)

	if err := <-ready; err != nil {
		<-l.stopped
		l.openErr = err
		l.state.Store(int32(LoopStopped))
		l.logger.Error("display open failed", F("loop", l.name), F("error", err))
		return fmt.Errorf("open display: %w", err)
	}

	l.state.Store(int32(LoopRunning))
	l.logger.Info("event loop started", F("loop", l.name), F("poll_interval", l.pollInterval))
	return nil
}

// OpenErr returns the error that kept the loop from starting, if any.
func (l *EventLoop) OpenErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.openErr
}

// Stop signals the loop to exit and blocks until it has. Queued tasks are
// applied before the goroutine returns. Stop on an Idle or Stopped loop is a
// no-op.
func (l *EventLoop) Stop() {
	l.mu.Lock()
	switch l.State() {
	case LoopIdle, LoopStopped:
		l.mu.Unlock()
		return
	case LoopRunning:
		l.state.Store(int32(LoopStopping))
		close(l.stopCh)
	}
	l.mu.Unlock()

	// Concurrent Stop calls all wait here
	<-l.stopped
}

// run is the core of this loop, it occupies a dedicated goroutine
func (l *EventLoop) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.stopped)

	if err := l.contain("open", l.display.Open); err != nil {
		ready <- err
		return
	}
	ready <- nil

	timer := time.NewTimer(l.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-l.queue.Signal():
		case <-timer.C:
		case <-l.stopCh:
		}

		l.runOnce()

		select {
		case <-l.stopCh:
			l.shutdown()
			return
		default:
		}

		timer.Reset(l.pollInterval)
	}
}

// runOnce drains the queue, applies the batch and pumps once.
func (l *EventLoop) runOnce() {
	batch := l.queue.DrainAll()
	l.metrics.RecordQueueDepth(l.name, len(batch))

	if l.coalesce && len(batch) > 1 {
		batch = l.coalesceShows(batch)
	}
	for i := range batch {
		l.apply(batch[i])
	}

	l.pump()
}

func (l *EventLoop) shutdown() {
	// Producers are refused once Stopping is visible, so this is normally empty
	for _, t := range l.queue.DrainAll() {
		l.apply(t)
	}

	destroy := func(fn func() error) error { return l.contain("destroy", fn) }
	for _, err := range l.registry.teardown(l.display, destroy) {
		l.logger.Warn("window teardown failed", F("loop", l.name), F("error", err))
	}
	l.pump()

	if err := l.contain("close", l.display.Close); err != nil {
		l.logger.Warn("display close failed", F("loop", l.name), F("error", err))
	}

	l.state.Store(int32(LoopStopped))
	l.logger.Info("event loop stopped",
		F("loop", l.name),
		F("applied", l.applied.Load()),
		F("failed", l.failed.Load()),
	)
}

// apply runs one task against the registry. Failures are logged and counted
// and never stop the batch.
func (l *EventLoop) apply(t Task) {
	if t.Kind == kindBarrier {
		close(t.barrier)
		return
	}

	rec := TaskExecutionRecord{
		Seq:        t.Seq,
		Kind:       t.Kind,
		Owner:      t.Owner,
		EnqueuedAt: t.EnqueuedAt,
		StartedAt:  time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			rec.Panicked = true
			rec.Err = fmt.Errorf("panic: %v", r)
			l.panicHandler.HandlePanic(l.name, t, r, debug.Stack())
			l.metrics.RecordTaskFailed(l.name, t.Kind, "panic")
			l.failed.Add(1)
		}
		rec.Duration = time.Since(rec.StartedAt)
		l.history.Add(rec)
		l.lastKind.Store(int32(t.Kind))
		l.lastAt.Store(rec.StartedAt.UnixNano())
		l.metrics.RecordTaskDuration(l.name, t.Kind, rec.Duration)
	}()

	var err error
	switch t.Kind {
	case KindRegister:
		err = l.registry.applyRegister(t.Owner, t.Name, l.display)
	case KindUnregister:
		err = l.registry.applyUnregister(t.Owner, l.display)
	case KindShow:
		err = l.registry.applyShow(t.Owner, t.Frame, l.display)
	default:
		err = fmt.Errorf("unsupported task kind %s", t.Kind)
	}

	if err != nil {
		rec.Err = err
		l.failed.Add(1)
		l.metrics.RecordTaskFailed(l.name, t.Kind, failureReason(err))
		l.logger.Warn("task failed",
			F("loop", l.name),
			F("kind", t.Kind.String()),
			F("owner", t.Owner.String()),
			F("seq", t.Seq),
			F("error", err),
		)
		return
	}
	l.applied.Add(1)
}

func (l *EventLoop) pump() {
	start := time.Now()
	err := l.contain("pump", l.display.Pump)
	l.pumps.Add(1)
	l.metrics.RecordPump(l.name, time.Since(start), err)

	if err != nil {
		l.pumpErrs.Add(1)
		// Log transitions only; a dead connection would otherwise log every tick
		if !l.pumpFailing {
			l.logger.Warn("display pump failed", F("loop", l.name), F("error", err))
		}
		l.pumpFailing = true
		return
	}
	if l.pumpFailing {
		l.logger.Info("display pump recovered", F("loop", l.name))
	}
	l.pumpFailing = false
}

// coalesceShows drops every show that is followed, in the same batch, by a
// newer show for the same owner with no register or unregister for that owner
// in between. Order of the remaining tasks is unchanged.
func (l *EventLoop) coalesceShows(batch []Task) []Task {
	// newerShow holds owners that have a later show with no lifecycle task between
	newerShow := make(map[OwnerID]struct{})
	drop := make([]bool, len(batch))
	dropped := 0

	for i := len(batch) - 1; i >= 0; i-- {
		t := batch[i]
		switch t.Kind {
		case KindShow:
			if _, ok := newerShow[t.Owner]; ok {
				drop[i] = true
				dropped++
				continue
			}
			newerShow[t.Owner] = struct{}{}
		case KindRegister, KindUnregister:
			delete(newerShow, t.Owner)
		}
	}
	if dropped == 0 {
		return batch
	}

	kept := batch[:0]
	for i, t := range batch {
		if !drop[i] {
			kept = append(kept, t)
		}
	}
	l.coalesced.Add(uint64(dropped))
	return kept
}

// RecentTasks returns up to limit applied tasks, newest first.
func (l *EventLoop) RecentTasks(limit int) []TaskExecutionRecord {
	return l.history.Recent(limit)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyName):
		return "empty_name"
	case errors.Is(err, ErrDuplicateName):
		return "duplicate_name"
	case errors.Is(err, ErrDuplicateOwner):
		return "duplicate_owner"
	case errors.Is(err, ErrUnknownOwner):
		return "unknown_owner"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "display"
	}
}

// contain runs a display call that belongs to no task. A panic is reported to
// the PanicHandler as a KindDisplay task named after step and returned as an
// error, so the loop goroutine survives a misbehaving backend.
func (l *EventLoop) contain(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", step, r)
			l.panicHandler.HandlePanic(l.name, Task{Kind: KindDisplay, Name: step}, r, debug.Stack())
		}
	}()
	return fn()
}
