package msg

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Offer carries a session description from the initiating side of a
// handshake. ID names the sender.
type Offer struct {
	ID    uuid.UUID                 `json:"id"`
	Offer webrtc.SessionDescription `json:"offer"`
}

// NewOffer creates a new Offer envelope.
func NewOffer(id uuid.UUID, sdp webrtc.SessionDescription) *Offer {
	return &Offer{ID: id, Offer: sdp}
}

// String returns print friendly name.
func (*Offer) String() string {
	return "OFFER"
}

func (*Offer) envelope() {}
