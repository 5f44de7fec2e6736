// Package msg defines the signaling envelopes exchanged between the
// matchmaker and its clients, together with the JSON codec used on the
// websocket wire. Envelopes are externally tagged: a text frame holds
// a single-key object whose key names the variant, e.g.
//
//	{"Id":"0b0d..."}
//	{"Offer":{"id":"0b0d...","offer":{"type":"offer","sdp":"..."}}}
//
// Clients address envelopes to each other by wrapping them in a
// PeerMessage; the matchmaker routes on peer_id and never inspects the
// content beyond decoding it.
package msg

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// ErrMalformed is returned when a frame does not decode as exactly one
// envelope variant.
var ErrMalformed = errors.New("malformed envelope")

// Envelope is a signaling message. In routed envelopes the embedded id
// names the sender, never the recipient.
type Envelope interface {
	String() string

	envelope()
}

// wrapper mirrors the externally tagged wire form. Exactly one field
// is set on a valid frame.
type wrapper struct {
	Id               *uuid.UUID        `json:"Id,omitempty"`
	NewPeer          *NewPeer          `json:"NewPeer,omitempty"`
	Peers            *Peers            `json:"Peers,omitempty"`
	Offer            *Offer            `json:"Offer,omitempty"`
	Answer           *Answer           `json:"Answer,omitempty"`
	IceCandidate     *IceCandidate     `json:"IceCandidate,omitempty"`
	PeerDisconnected *PeerDisconnected `json:"PeerDisconnected,omitempty"`
}

func wrap(e Envelope) (wrapper, error) {
	var w wrapper
	switch m := e.(type) {
	case *Id:
		w.Id = &m.ID
	case *NewPeer:
		w.NewPeer = m
	case *Peers:
		w.Peers = m
	case *Offer:
		w.Offer = m
	case *Answer:
		w.Answer = m
	case *IceCandidate:
		w.IceCandidate = m
	case *PeerDisconnected:
		w.PeerDisconnected = m
	default:
		return w, ErrMalformed
	}
	return w, nil
}

func (w *wrapper) unwrap() (Envelope, error) {
	var e Envelope
	set := 0
	if w.Id != nil {
		e = &Id{ID: *w.Id}
		set++
	}
	if w.NewPeer != nil {
		e = w.NewPeer
		set++
	}
	if w.Peers != nil {
		e = w.Peers
		set++
	}
	if w.Offer != nil {
		e = w.Offer
		set++
	}
	if w.Answer != nil {
		e = w.Answer
		set++
	}
	if w.IceCandidate != nil {
		e = w.IceCandidate
		set++
	}
	if w.PeerDisconnected != nil {
		e = w.PeerDisconnected
		set++
	}
	if set != 1 {
		return nil, ErrMalformed
	}
	return e, nil
}

// Marshal serializes an envelope to its wire form.
func Marshal(e Envelope) ([]byte, error) {
	w, err := wrap(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// Unmarshal parses a text frame into the envelope it carries.
func Unmarshal(data []byte) (Envelope, error) {
	var w wrapper
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return w.unwrap()
}
