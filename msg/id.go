package msg

import "github.com/google/uuid"

// Id carries the client id assigned by the matchmaker. It is the first
// frame on every session and is never routed between clients. On the
// wire the variant holds the bare uuid string.
type Id struct {
	ID uuid.UUID
}

// NewId creates a new Id envelope.
func NewId(id uuid.UUID) *Id {
	return &Id{ID: id}
}

// String returns print friendly name.
func (*Id) String() string {
	return "ID"
}

func (*Id) envelope() {}
