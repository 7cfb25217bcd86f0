package core

import (
	"errors"
	"testing"
)

// TestWindowRegistry_RegisterRejects verifies the uniqueness and empty-name checks
// Given: a registry with owner A holding "cam"
// When: registering an empty name, "cam" for B, and a second name for A
// Then: each fails with its own error and no window is created
func TestWindowRegistry_RegisterRejects(t *testing.T) {
	// Arrange
	r := NewWindowRegistry()
	d := newFakeDisplay()
	a, b := NewOwnerID(), NewOwnerID()
	if err := r.applyRegister(a, "cam", d); err != nil {
		t.Fatalf("initial register failed: %v", err)
	}

	// Act & Assert
	tests := []struct {
		name    string
		owner   OwnerID
		window  string
		wantErr error
	}{
		{"empty name", b, "", ErrEmptyName},
		{"duplicate name", b, "cam", ErrDuplicateName},
		{"duplicate owner", a, "other", ErrDuplicateOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.applyRegister(tt.owner, tt.window, d)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if len(d.created) != 1 {
		t.Errorf("created windows = %v, want only [cam]", d.created)
	}
	if r.Len() != 1 {
		t.Errorf("registry size = %d, want 1", r.Len())
	}
}

// TestWindowRegistry_Lifecycle verifies register, show and unregister end to end
// Given: an empty registry
// When: a window is registered, shown twice, then unregistered
// Then: the record is Active with two frames, then removed and the name is free
func TestWindowRegistry_Lifecycle(t *testing.T) {
	r := NewWindowRegistry()
	d := newFakeDisplay()
	owner := NewOwnerID()

	if err := r.applyRegister(owner, "cam", d); err != nil {
		t.Fatalf("register: %v", err)
	}
	for range 2 {
		if err := r.applyShow(owner, rgbFrame(2, 2), d); err != nil {
			t.Fatalf("show: %v", err)
		}
	}

	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].State != StateActive || snap[0].Frames != 2 {
		t.Fatalf("snapshot = %+v, want one active record with 2 frames", snap)
	}
	if name, ok := r.LookupName(owner); !ok || name != "cam" {
		t.Errorf("LookupName = %q, %v; want cam, true", name, ok)
	}

	if err := r.applyUnregister(owner, d); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if _, ok := r.LookupName(owner); ok {
		t.Error("record still present after unregister")
	}
	if len(d.destroyed) != 1 || d.destroyed[0] != "cam" {
		t.Errorf("destroyed = %v, want [cam]", d.destroyed)
	}

	// Name is reusable by someone else
	if err := r.applyRegister(NewOwnerID(), "cam", d); err != nil {
		t.Errorf("re-register released name: %v", err)
	}
}

// TestWindowRegistry_UnknownOwner verifies operations on absent owners
// Given: an empty registry
// When: show and unregister are applied for an owner with no record
// Then: both fail with ErrUnknownOwner and the display is untouched
func TestWindowRegistry_UnknownOwner(t *testing.T) {
	r := NewWindowRegistry()
	d := newFakeDisplay()
	owner := NewOwnerID()

	if err := r.applyShow(owner, rgbFrame(1, 1), d); !errors.Is(err, ErrUnknownOwner) {
		t.Errorf("show err = %v, want ErrUnknownOwner", err)
	}
	if err := r.applyUnregister(owner, d); !errors.Is(err, ErrUnknownOwner) {
		t.Errorf("unregister err = %v, want ErrUnknownOwner", err)
	}
	if len(d.created)+len(d.destroyed) != 0 {
		t.Error("display was touched")
	}
}

// TestWindowRegistry_CreateFailureLeavesNoRecord verifies a failed window creation
// Given: a display whose CreateWindow fails
// When: a register is applied
// Then: the error is returned and neither the owner nor the name is held
func TestWindowRegistry_CreateFailureLeavesNoRecord(t *testing.T) {
	r := NewWindowRegistry()
	d := newFakeDisplay()
	d.createErr = errors.New("no display")
	owner := NewOwnerID()

	if err := r.applyRegister(owner, "cam", d); err == nil {
		t.Fatal("register succeeded on failing display")
	}
	if r.Len() != 0 {
		t.Errorf("registry size = %d, want 0", r.Len())
	}

	d.createErr = nil
	if err := r.applyRegister(owner, "cam", d); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

// TestWindowRecord_Transitions verifies only forward, single-step moves are allowed
func TestWindowRecord_Transitions(t *testing.T) {
	tests := []struct {
		from, to WindowState
		ok       bool
	}{
		{StatePending, StateActive, true},
		{StateActive, StatePendingRemoval, true},
		{StatePendingRemoval, StateRemoved, true},
		{StatePending, StateRemoved, false},
		{StateActive, StateRemoved, false},
		{StateActive, StatePending, false},
		{StateRemoved, StateActive, false},
		{StatePendingRemoval, StateActive, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			rec := &WindowRecord{State: tt.from}
			err := rec.transition(tt.to)
			if tt.ok && err != nil {
				t.Errorf("transition failed: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("err = %v, want ErrInvalidTransition", err)
			}
			if !tt.ok && rec.State != tt.from {
				t.Errorf("state changed to %s on rejected transition", rec.State)
			}
		})
	}
}

// TestWindowRegistry_Teardown verifies every live window is destroyed once
func TestWindowRegistry_Teardown(t *testing.T) {
	r := NewWindowRegistry()
	d := newFakeDisplay()
	for _, name := range []string{"a", "b", "c"} {
		if err := r.applyRegister(NewOwnerID(), name, d); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	if errs := r.teardown(d, func(fn func() error) error { return fn() }); len(errs) != 0 {
		t.Fatalf("teardown errors: %v", errs)
	}
	if r.Len() != 0 {
		t.Errorf("registry size = %d, want 0", r.Len())
	}
	if len(d.destroyed) != 3 {
		t.Errorf("destroyed = %v, want 3 windows", d.destroyed)
	}
}

// lookupDuringCreate asks the registry for the owner's name from inside
// CreateWindow, while the record is still pending.
type lookupDuringCreate struct {
	*fakeDisplay
	registry *WindowRegistry
	owner    OwnerID
	found    bool
}

func (d *lookupDuringCreate) CreateWindow(name string) error {
	_, d.found = d.registry.LookupName(d.owner)
	return d.fakeDisplay.CreateWindow(name)
}

// TestWindowRegistry_LookupNameActiveOnly verifies only on-screen windows are reported
// Given: a register whose window is still being created
// When: LookupName is asked for the owner
// Then: nothing is reported until the window is active
func TestWindowRegistry_LookupNameActiveOnly(t *testing.T) {
	r := NewWindowRegistry()
	owner := NewOwnerID()
	d := &lookupDuringCreate{fakeDisplay: newFakeDisplay(), registry: r, owner: owner}

	if err := r.applyRegister(owner, "cam", d); err != nil {
		t.Fatalf("register: %v", err)
	}

	if d.found {
		t.Error("LookupName reported a window that was still pending")
	}
	if name, ok := r.LookupName(owner); !ok || name != "cam" {
		t.Errorf("LookupName = %q, %v; want cam, true", name, ok)
	}
}
