package msg

import (
	"encoding/json"

	"github.com/google/uuid"
)

// PeerMessage is the client-to-server frame: an envelope addressed to
// another client. PeerID names the recipient; the content's own id
// field names the sender.
type PeerMessage struct {
	PeerID  uuid.UUID
	Content Envelope
}

// NewPeerMessage creates a new PeerMessage addressed to peer.
func NewPeerMessage(peer uuid.UUID, content Envelope) *PeerMessage {
	return &PeerMessage{PeerID: peer, Content: content}
}

// String returns print friendly name.
func (pm *PeerMessage) String() string {
	return "PEER MESSAGE"
}

type peerMessageWire struct {
	PeerID  uuid.UUID `json:"peer_id"`
	Content wrapper   `json:"content"`
}

// MarshalJSON implements json.Marshaler.
func (pm *PeerMessage) MarshalJSON() ([]byte, error) {
	w, err := wrap(pm.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(peerMessageWire{PeerID: pm.PeerID, Content: w})
}

// UnmarshalJSON implements json.Unmarshaler.
func (pm *PeerMessage) UnmarshalJSON(data []byte) error {
	var w peerMessageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	content, err := w.Content.unwrap()
	if err != nil {
		return err
	}
	pm.PeerID = w.PeerID
	pm.Content = content
	return nil
}
