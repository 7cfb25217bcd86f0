package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Service coordinates every window in the process. It owns the task queue, the
// window registry, the name reservations and the event loop, and is shared by
// all handles created from it.
//
// The loop starts lazily on the first Register and persists until Stop.
type Service struct {
	name     string
	queue    *TaskQueue
	registry *WindowRegistry
	loop     *EventLoop
	logger   Logger
	metrics  Metrics

	// mu makes reservation and enqueue one atomic step
	mu           sync.Mutex
	reservations *reservationIndex
	closing      bool

	rejected atomic.Uint64
}

// NewService creates a Service driving display. cfg may be nil.
func NewService(display Display, cfg *Config) *Service {
	c := cfg.withDefaults()
	queue := NewTaskQueue()
	registry := NewWindowRegistry()
	return &Service{
		name:         c.Name,
		queue:        queue,
		registry:     registry,
		loop:         NewEventLoop(queue, registry, display, &c),
		logger:       c.Logger,
		metrics:      c.Metrics,
		reservations: newReservationIndex(),
	}
}

// NewHandle returns a handle bound to a fresh owner identity. The handle holds
// no window until Register succeeds.
func (s *Service) NewHandle() *Handle {
	return newHandle(s)
}

// Create returns a handle with a window registered under name.
func (s *Service) Create(name string) (*Handle, error) {
	h := s.NewHandle()
	if err := h.Register(name); err != nil {
		return nil, err
	}
	return h, nil
}

// Stop refuses further work, waits for the loop to apply everything already
// queued, destroys the remaining windows and closes the display.
func (s *Service) Stop() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.loop.Stop()

	s.mu.Lock()
	s.reservations.reset()
	s.mu.Unlock()
}

// WaitIdle blocks until every task enqueued before the call has been applied.
// It returns nil at once if the loop has not started.
func (s *Service) WaitIdle(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrShutdownInProgress
	}
	switch s.loop.State() {
	case LoopIdle:
		s.mu.Unlock()
		return nil
	case LoopRunning:
	default:
		s.mu.Unlock()
		return ErrShutdownInProgress
	}
	b := barrierTask()
	s.queue.Push(b)
	s.mu.Unlock()

	select {
	case <-b.barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the service state.
func (s *Service) Stats() LoopStats {
	s.mu.Lock()
	reserved := s.reservations.len()
	s.mu.Unlock()

	l := s.loop
	stats := LoopStats{
		Name:      s.name,
		State:     l.State(),
		Pending:   s.queue.Len(),
		Windows:   s.registry.Len(),
		Reserved:  reserved,
		Applied:   l.applied.Load(),
		Failed:    l.failed.Load(),
		Coalesced: l.coalesced.Load(),
		Rejected:  s.rejected.Load(),
		Pumps:     l.pumps.Load(),
		PumpErrs:  l.pumpErrs.Load(),
	}
	if at := l.lastAt.Load(); at != 0 {
		stats.LastTaskKind = TaskKind(l.lastKind.Load())
		stats.LastTaskAt = time.Unix(0, at)
	}
	return stats
}

// Windows returns the registry's live records sorted by name.
func (s *Service) Windows() []WindowRecord {
	return s.registry.Snapshot()
}

// RecentTasks returns up to limit applied tasks, newest first.
func (s *Service) RecentTasks(limit int) []TaskExecutionRecord {
	return s.loop.RecentTasks(limit)
}

// Registry exposes the registry for read-only queries.
func (s *Service) Registry() *WindowRegistry {
	return s.registry
}

// Loop exposes the event loop for state queries.
func (s *Service) Loop() *EventLoop {
	return s.loop
}

func (s *Service) register(owner OwnerID, name string) error {
	if name == "" {
		s.reject("empty_name")
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Starting under mu orders the start against Stop: once closing is set
	// no caller can bring an Idle loop up.
	if s.closing {
		s.reject("shutdown")
		return ErrShutdownInProgress
	}
	if err := s.ensureStarted(); err != nil {
		return err
	}
	if s.loop.State() != LoopRunning {
		s.reject("shutdown")
		return ErrShutdownInProgress
	}
	if err := s.reservations.reserve(owner, name); err != nil {
		s.reject(failureReason(err))
		return err
	}
	s.queue.Push(registerTask(owner, name))

	s.logger.Debug("window registered", F("loop", s.name), F("owner", owner.String()), F("name", name))
	return nil
}

func (s *Service) show(owner OwnerID, frame *Frame) error {
	if err := frame.validate(); err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			s.reject("unsupported_format")
		} else {
			s.reject("invalid_frame")
		}
		return err
	}

	// Convert before taking the lock; the copy is what the loop will own
	converted := frame.toDisplayLayout()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		s.reject("shutdown")
		return ErrShutdownInProgress
	}
	if _, ok := s.reservations.nameOf(owner); !ok {
		s.reject("unknown_owner")
		return ErrUnknownOwner
	}
	s.queue.Push(showTask(owner, converted))
	return nil
}

func (s *Service) unregister(owner OwnerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.reservations.release(owner)
	if !ok {
		return
	}
	// Once closing, the loop tears down every window on its own
	if s.closing {
		return
	}
	s.queue.Push(unregisterTask(owner))

	s.logger.Debug("window unregistered", F("loop", s.name), F("owner", owner.String()), F("name", name))
}

func (s *Service) windowName(owner OwnerID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, _ := s.reservations.nameOf(owner)
	return name
}

// ensureStarted starts the loop if it is still Idle. s.mu must be held.
func (s *Service) ensureStarted() error {
	if s.loop.State() != LoopIdle {
		return s.startErr()
	}
	err := s.loop.Start()
	if err == nil || errors.Is(err, ErrLoopNotIdle) {
		return s.startErr()
	}
	return err
}

func (s *Service) startErr() error {
	if err := s.loop.OpenErr(); err != nil {
		return fmt.Errorf("display unavailable: %w", err)
	}
	return nil
}

func (s *Service) reject(reason string) {
	s.rejected.Add(1)
	s.metrics.RecordTaskRejected(s.name, reason)
}
