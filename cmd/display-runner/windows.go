package main

import (
	"errors"
	"sort"
	"sync"

	"github.com/Swind/go-display-runner/core"
)

// errDismissed is returned by show for a window the user closed.
var errDismissed = errors.New("window dismissed")

// windowSet tracks the handles a command opened, by window name. Producers
// and backend callbacks reach it from different goroutines.
type windowSet struct {
	svc *core.Service

	mu        sync.Mutex
	handles   map[string]*core.Handle
	dismissed map[string]bool
}

func newWindowSet(svc *core.Service) *windowSet {
	return &windowSet{
		svc:       svc,
		handles:   make(map[string]*core.Handle),
		dismissed: make(map[string]bool),
	}
}

// show displays frame in the window called name, creating it on first use.
func (s *windowSet) show(name string, frame *core.Frame) error {
	s.mu.Lock()
	if s.dismissed[name] {
		s.mu.Unlock()
		return errDismissed
	}
	h, ok := s.handles[name]
	if !ok {
		var err error
		if h, err = s.svc.Create(name); err != nil {
			s.mu.Unlock()
			return err
		}
		s.handles[name] = h
	}
	s.mu.Unlock()

	return h.Show(frame)
}

// close destroys the window called name and keeps show from reopening it.
func (s *windowSet) close(name string) {
	s.mu.Lock()
	s.dismissed[name] = true
	h := s.take(name)
	s.mu.Unlock()

	if h != nil {
		h.Close()
	}
}

// release destroys the window called name; a later show opens it again.
func (s *windowSet) release(name string) {
	s.mu.Lock()
	delete(s.dismissed, name)
	h := s.take(name)
	s.mu.Unlock()

	if h != nil {
		h.Close()
	}
}

// take removes and returns the handle for name. s.mu must be held.
func (s *windowSet) take(name string) *core.Handle {
	h := s.handles[name]
	delete(s.handles, name)
	return h
}

func (s *windowSet) closeAll() {
	s.mu.Lock()
	handles := s.handles
	s.handles = make(map[string]*core.Handle)
	s.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}

// names returns the open window names, sorted.
func (s *windowSet) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.handles))
	for name := range s.handles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
