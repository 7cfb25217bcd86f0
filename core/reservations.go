package core

import "fmt"

// reservationIndex is the synchronous names-in-use view consulted by the
// facade before a register task is enqueued. It runs ahead of the registry:
// a name is reserved the moment Register returns and released the moment
// Unregister returns, and the queue's FIFO order makes the registry catch up
// in the same sequence.
//
// Not locked itself; Service.mu guards it so that reserve and enqueue happen
// as one step.
type reservationIndex struct {
	byOwner map[OwnerID]string
	byName  map[string]OwnerID
}

func newReservationIndex() *reservationIndex {
	return &reservationIndex{
		byOwner: make(map[OwnerID]string),
		byName:  make(map[string]OwnerID),
	}
}

func (r *reservationIndex) reserve(owner OwnerID, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if _, ok := r.byOwner[owner]; ok {
		return ErrDuplicateOwner
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.byOwner[owner] = name
	r.byName[name] = owner
	return nil
}

func (r *reservationIndex) release(owner OwnerID) (string, bool) {
	name, ok := r.byOwner[owner]
	if !ok {
		return "", false
	}
	delete(r.byOwner, owner)
	delete(r.byName, name)
	return name, true
}

func (r *reservationIndex) nameOf(owner OwnerID) (string, bool) {
	name, ok := r.byOwner[owner]
	return name, ok
}

func (r *reservationIndex) len() int {
	return len(r.byOwner)
}

func (r *reservationIndex) reset() {
	clear(r.byOwner)
	clear(r.byName)
}
