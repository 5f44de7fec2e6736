package msg

import "github.com/google/uuid"

// NewPeer announces a freshly connected client to an existing one. The
// receiver is expected to open the handshake towards id.
type NewPeer struct {
	ID uuid.UUID `json:"id"`
}

// NewNewPeer creates a new NewPeer envelope.
func NewNewPeer(id uuid.UUID) *NewPeer {
	return &NewPeer{ID: id}
}

// String returns print friendly name.
func (*NewPeer) String() string {
	return "NEW PEER"
}

func (*NewPeer) envelope() {}
