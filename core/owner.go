package core

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// OwnerID identifies one window-owning caller. It is the join key between the
// reservation index and the window registry.
type OwnerID ulid.ULID

// NewOwnerID mints a fresh, time-ordered owner identity.
func NewOwnerID() OwnerID {
	return OwnerID(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader))
}

// String returns the canonical 26 character ULID form.
func (o OwnerID) String() string {
	return ulid.ULID(o).String()
}

// IsZero reports whether o is the zero identity.
func (o OwnerID) IsZero() bool {
	return o == OwnerID{}
}
