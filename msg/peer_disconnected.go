package msg

import "github.com/google/uuid"

// PeerDisconnected tells the remaining clients that id has left the
// mesh and its handshake state can be dropped.
type PeerDisconnected struct {
	ID uuid.UUID `json:"id"`
}

// NewPeerDisconnected creates a new PeerDisconnected envelope.
func NewPeerDisconnected(id uuid.UUID) *PeerDisconnected {
	return &PeerDisconnected{ID: id}
}

// String returns print friendly name.
func (*PeerDisconnected) String() string {
	return "PEER DISCONNECTED"
}

func (*PeerDisconnected) envelope() {}
