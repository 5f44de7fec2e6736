package msg

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

func roundTrip(t *testing.T, e Envelope) Envelope {
	t.Helper()

	data, err := Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return decoded
}

func TestId(t *testing.T) {
	id := uuid.New()
	decoded := roundTrip(t, NewId(id))

	m, ok := decoded.(*Id)
	if !ok {
		t.Fatalf("expected *Id, got %T", decoded)
	}
	if m.ID != id {
		t.Fatalf("expected %s, got %s", id, m.ID)
	}

	// The Id variant holds the bare uuid string on the wire.
	data, _ := Marshal(NewId(id))
	expected := `{"Id":"` + id.String() + `"}`
	if string(data) != expected {
		t.Fatalf("expected %s, got %s", expected, data)
	}
}

func TestNewPeer(t *testing.T) {
	id := uuid.New()
	decoded := roundTrip(t, NewNewPeer(id))

	m, ok := decoded.(*NewPeer)
	if !ok {
		t.Fatalf("expected *NewPeer, got %T", decoded)
	}
	if m.ID != id {
		t.Fatalf("expected %s, got %s", id, m.ID)
	}
}

func TestPeers(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	decoded := roundTrip(t, NewPeers([]uuid.UUID{a, b}))

	m, ok := decoded.(*Peers)
	if !ok {
		t.Fatalf("expected *Peers, got %T", decoded)
	}
	if len(m.IDs) != 2 || m.IDs[0] != a || m.IDs[1] != b {
		t.Fatalf("snapshot did not survive the round trip: %+v", m)
	}

	// An empty snapshot is still a Peers envelope.
	decoded = roundTrip(t, NewPeers(nil))
	m, ok = decoded.(*Peers)
	if !ok {
		t.Fatalf("expected *Peers, got %T", decoded)
	}
	if len(m.IDs) != 0 {
		t.Fatalf("expected no ids, got %v", m.IDs)
	}
}

func TestOffer(t *testing.T) {
	id := uuid.New()
	sdp := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}
	decoded := roundTrip(t, NewOffer(id, sdp))

	m, ok := decoded.(*Offer)
	if !ok {
		t.Fatalf("expected *Offer, got %T", decoded)
	}
	if m.ID != id || m.Offer.Type != webrtc.SDPTypeOffer || m.Offer.SDP != "v=0\r\n" {
		t.Fatalf("offer did not survive the round trip: %+v", m)
	}
}

func TestAnswer(t *testing.T) {
	id := uuid.New()
	sdp := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}
	decoded := roundTrip(t, NewAnswer(id, sdp))

	m, ok := decoded.(*Answer)
	if !ok {
		t.Fatalf("expected *Answer, got %T", decoded)
	}
	if m.ID != id || m.Answer.Type != webrtc.SDPTypeAnswer {
		t.Fatalf("answer did not survive the round trip: %+v", m)
	}
}

func TestIceCandidate(t *testing.T) {
	id := uuid.New()
	decoded := roundTrip(t, NewIceCandidate(id, "candidate:0 1 UDP 2122252543 192.0.2.1 54400 typ host"))

	m, ok := decoded.(*IceCandidate)
	if !ok {
		t.Fatalf("expected *IceCandidate, got %T", decoded)
	}
	if m.ID != id || m.Candidate == "" {
		t.Fatalf("candidate did not survive the round trip: %+v", m)
	}
}

func TestPeerDisconnected(t *testing.T) {
	id := uuid.New()
	decoded := roundTrip(t, NewPeerDisconnected(id))

	m, ok := decoded.(*PeerDisconnected)
	if !ok {
		t.Fatalf("expected *PeerDisconnected, got %T", decoded)
	}
	if m.ID != id {
		t.Fatalf("expected %s, got %s", id, m.ID)
	}
}

func TestPeerMessage(t *testing.T) {
	sender := uuid.New()
	recipient := uuid.New()
	pm := NewPeerMessage(recipient, NewIceCandidate(sender, "candidate:0"))

	data, err := json.Marshal(pm)
	if err != nil {
		t.Fatal(err)
	}

	var decoded PeerMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.PeerID != recipient {
		t.Fatalf("expected %s, got %s", recipient, decoded.PeerID)
	}
	ice, ok := decoded.Content.(*IceCandidate)
	if !ok {
		t.Fatalf("expected *IceCandidate content, got %T", decoded.Content)
	}
	if ice.ID != sender {
		t.Fatalf("expected sender %s, got %s", sender, ice.ID)
	}
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	for _, data := range []string{
		`{}`,
		`{"Nonsense":{"id":"x"}}`,
		`{"Id":"0b0d0000-0000-0000-0000-000000000000","NewPeer":{"id":"0b0d0000-0000-0000-0000-000000000001"}}`,
	} {
		if _, err := Unmarshal([]byte(data)); err == nil {
			t.Fatalf("expected error for %s", data)
		}
	}

	// A PeerMessage frame is not a bare envelope.
	pm, _ := json.Marshal(NewPeerMessage(uuid.New(), NewNewPeer(uuid.New())))
	if _, err := Unmarshal(pm); err == nil {
		t.Fatal("expected error unmarshalling a PeerMessage as an envelope")
	}
}
