package msg

import "github.com/google/uuid"

// Peers is the snapshot a newcomer receives right after its Id: the
// ids of every other connected client, possibly none. The receiver
// creates handshake state for each id and waits for that peer's
// offer; the existing side initiates.
type Peers struct {
	IDs []uuid.UUID `json:"ids"`
}

// NewPeers creates a new Peers envelope.
func NewPeers(ids []uuid.UUID) *Peers {
	return &Peers{IDs: ids}
}

// String returns print friendly name.
func (*Peers) String() string {
	return "PEERS"
}

func (*Peers) envelope() {}
