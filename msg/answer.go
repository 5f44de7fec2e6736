package msg

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Answer carries the responding session description of a handshake.
// ID names the sender.
type Answer struct {
	ID     uuid.UUID                 `json:"id"`
	Answer webrtc.SessionDescription `json:"answer"`
}

// NewAnswer creates a new Answer envelope.
func NewAnswer(id uuid.UUID, sdp webrtc.SessionDescription) *Answer {
	return &Answer{ID: id, Answer: sdp}
}

// String returns print friendly name.
func (*Answer) String() string {
	return "ANSWER"
}

func (*Answer) envelope() {}
