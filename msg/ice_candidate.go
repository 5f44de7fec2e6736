package msg

import "github.com/google/uuid"

// IceCandidate carries one trickled ICE candidate line, exactly as
// produced by the media engine. ID names the sender.
type IceCandidate struct {
	ID        uuid.UUID `json:"id"`
	Candidate string    `json:"candidate"`
}

// NewIceCandidate creates a new IceCandidate envelope.
func NewIceCandidate(id uuid.UUID, candidate string) *IceCandidate {
	return &IceCandidate{ID: id, Candidate: candidate}
}

// String returns print friendly name.
func (*IceCandidate) String() string {
	return "ICE CANDIDATE"
}

func (*IceCandidate) envelope() {}
