package core

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// WindowState is the lifecycle position of a WindowRecord.
type WindowState int

const (
	StatePending WindowState = iota
	StateActive
	StatePendingRemoval
	StateRemoved
)

func (s WindowState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StatePendingRemoval:
		return "pending_removal"
	case StateRemoved:
		return "removed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WindowRecord is the registry's view of one window.
type WindowRecord struct {
	Owner     OwnerID
	Name      string
	State     WindowState
	CreatedAt time.Time
	Frames    uint64
}

// transition moves the record one step forward.
func (r *WindowRecord) transition(to WindowState) error {
	switch {
	case r.State == StatePending && to == StateActive,
		r.State == StateActive && to == StatePendingRemoval,
		r.State == StatePendingRemoval && to == StateRemoved:
		r.State = to
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
	}
}

// WindowRegistry maps owners to their windows.
//
// The apply* methods mutate the registry and drive the Display. They must only
// be called from the event loop goroutine. Readers (LookupName, Len, Snapshot)
// may run on any goroutine; mu guards the maps for them.
type WindowRegistry struct {
	mu      sync.RWMutex
	records map[OwnerID]*WindowRecord
	names   map[string]OwnerID
}

// NewWindowRegistry creates an empty registry.
func NewWindowRegistry() *WindowRegistry {
	return &WindowRegistry{
		records: make(map[OwnerID]*WindowRecord),
		names:   make(map[string]OwnerID),
	}
}

func (r *WindowRegistry) applyRegister(owner OwnerID, name string, d Display) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	if _, ok := r.records[owner]; ok {
		r.mu.Unlock()
		return ErrDuplicateOwner
	}
	if _, ok := r.names[name]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	rec := &WindowRecord{Owner: owner, Name: name, State: StatePending, CreatedAt: time.Now()}
	r.records[owner] = rec
	r.names[name] = owner
	r.mu.Unlock()

	// Display calls happen outside mu so readers are never held up by the
	// window system. The pending record is dropped on error or panic.
	created := false
	defer func() {
		if !created {
			r.mu.Lock()
			delete(r.records, owner)
			delete(r.names, name)
			r.mu.Unlock()
		}
	}()
	if err := d.CreateWindow(name); err != nil {
		return fmt.Errorf("create window %q: %w", name, err)
	}
	created = true

	r.mu.Lock()
	defer r.mu.Unlock()
	return rec.transition(StateActive)
}

func (r *WindowRegistry) applyUnregister(owner OwnerID, d Display) error {
	r.mu.Lock()
	rec, ok := r.records[owner]
	if !ok || rec.State != StateActive {
		r.mu.Unlock()
		return ErrUnknownOwner
	}
	if err := rec.transition(StatePendingRemoval); err != nil {
		r.mu.Unlock()
		return err
	}
	name := rec.Name
	r.mu.Unlock()

	// The record goes away even if the window system complained or panicked;
	// keeping it would pin the name forever.
	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// Only the loop goroutine moves records, so this cannot fail
		_ = rec.transition(StateRemoved)
		delete(r.records, owner)
		delete(r.names, name)
	}()

	if err := d.DestroyWindow(name); err != nil {
		return fmt.Errorf("destroy window %q: %w", name, err)
	}
	return nil
}

func (r *WindowRegistry) applyShow(owner OwnerID, frame *Frame, d Display) error {
	r.mu.RLock()
	rec, ok := r.records[owner]
	active := ok && rec.State == StateActive
	var name string
	if active {
		name = rec.Name
	}
	r.mu.RUnlock()

	if !active {
		return ErrUnknownOwner
	}

	if err := d.ShowFrame(name, frame); err != nil {
		return fmt.Errorf("show frame on %q: %w", name, err)
	}

	r.mu.Lock()
	rec.Frames++
	r.mu.Unlock()
	return nil
}

// teardown destroys every remaining window. Called once when the loop exits.
// Each destroy runs through call, so one failing window cannot keep the rest
// open.
func (r *WindowRegistry) teardown(d Display, call func(fn func() error) error) []error {
	r.mu.RLock()
	owners := make([]OwnerID, 0, len(r.records))
	for owner, rec := range r.records {
		if rec.State == StateActive {
			owners = append(owners, owner)
		}
	}
	r.mu.RUnlock()

	var errs []error
	for _, owner := range owners {
		if err := call(func() error { return r.applyUnregister(owner, d) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// LookupName returns the name of the window owner has on screen. Records
// still being created or already being destroyed are not reported, matching
// the records a show is applied to.
func (r *WindowRegistry) LookupName(owner OwnerID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[owner]
	if !ok || rec.State != StateActive {
		return "", false
	}
	return rec.Name, true
}

// Len returns the number of live records.
func (r *WindowRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Snapshot returns copies of all live records sorted by name.
func (r *WindowRegistry) Snapshot() []WindowRecord {
	r.mu.RLock()
	out := make([]WindowRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
