package netcode

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/trobanga/netcode/msg"
)

// dataChannelLabel names the unreliable channel both sides create.
const dataChannelLabel = "data"

type peerState int

// Peer driver states. A driver that fails negotiation goes to
// peerClosed and is removed from the socket's peer map.
const (
	peerNew peerState = iota
	peerOffering
	peerAnswering
	peerWaitingForIce
	peerChannelOpen
	peerClosed
)

func (s peerState) String() string {
	switch s {
	case peerNew:
		return "New"
	case peerOffering:
		return "Offering"
	case peerAnswering:
		return "Answering"
	case peerWaitingForIce:
		return "WaitingForIce"
	case peerChannelOpen:
		return "ChannelOpen"
	case peerClosed:
		return "Closed"
	}

	return ""
}

// peer drives one (local, remote) pair: it owns the media session,
// negotiates the session descriptions, trickles ICE, and surfaces the
// unreliable data channel.
//
// The media engine invokes its observers on internal goroutines; the
// shims installed here only push messages into the socket's channels
// and publish the ready flag, all real work runs in the socket loop.
type peer struct {
	local  uuid.UUID
	remote uuid.UUID

	conn     *webrtc.PeerConnection
	outbound *webrtc.DataChannel

	sigOut chan<- *msg.PeerMessage
	inData chan<- Packet

	mu      sync.Mutex
	ready   bool
	state   peerState
	pending []string // remote candidates received before the remote description

	log *logrus.Entry
}

// newPeer builds the media session and the outbound unreliable channel
// and installs the observer shims. It does not negotiate; the socket
// loop calls initiateOffer or acceptOffer depending on which side
// announced the pairing.
func newPeer(local, remote uuid.UUID, config Config, sigOut chan<- *msg.PeerMessage, inData chan<- Packet, log *logrus.Entry) (*peer, error) {
	conn, err := webrtc.NewPeerConnection(config.rtcConfiguration())
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	p := &peer{
		local:  local,
		remote: remote,
		conn:   conn,
		sigOut: sigOut,
		inData: inData,
		state:  peerNew,
		log:    log.WithField("peer", remote),
	}

	conn.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.log.WithField("state", s).Debug("peer connection state changed")
		if s == webrtc.PeerConnectionStateFailed {
			// Recovery via ICE restart is not implemented; the driver
			// stays up so a later state change can still rescue it.
			p.log.Warn("peer connection failed")
		}
	})

	conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		p.emit(msg.NewIceCandidate(p.local, c.ToJSON().Candidate))
	})

	conn.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.log.WithField("label", dc.Label()).Debug("remote data channel")
		dc.OnOpen(func() {
			p.setReady()
		})
		dc.OnMessage(func(m webrtc.DataChannelMessage) {
			select {
			case p.inData <- Packet{Peer: p.remote, Payload: m.Data}:
			default:
				// The channel is unreliable by contract; shedding here
				// is indistinguishable from loss in transit.
			}
		})
	})

	ordered := false
	var maxRetransmits uint16
	p.outbound, err = conn.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating data channel: %w", err)
	}
	p.outbound.OnOpen(func() {
		p.setReady()
	})

	return p, nil
}

// emit queues an envelope for the remote peer without blocking the
// engine's observer goroutine.
func (p *peer) emit(content msg.Envelope) {
	select {
	case p.sigOut <- msg.NewPeerMessage(p.remote, content):
	default:
		p.log.WithField("envelope", content.String()).Warn("signaling queue full, dropping")
	}
}

func (p *peer) setReady() {
	p.mu.Lock()
	p.ready = true
	p.state = peerChannelOpen
	p.mu.Unlock()
	p.log.Debug("data channel open")
}

func (p *peer) setState(s peerState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// isReady reports whether at least one direction of the data channel
// has opened.
func (p *peer) isReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// initiateOffer starts the handshake from the side that learned of the
// pairing through NewPeer. Trickle runs independently; the offer does
// not wait for gathering.
func (p *peer) initiateOffer() error {
	p.setState(peerOffering)
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creating offer: %w", err)
	}
	if err := p.conn.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("setting local offer: %w", err)
	}
	p.emit(msg.NewOffer(p.local, *p.conn.LocalDescription()))
	p.setState(peerWaitingForIce)
	return nil
}

// acceptOffer answers the handshake on the side that learned of the
// pairing through the offer itself.
func (p *peer) acceptOffer(sdp webrtc.SessionDescription) error {
	p.setState(peerAnswering)
	if err := p.setRemoteDescription(sdp); err != nil {
		return fmt.Errorf("setting remote offer: %w", err)
	}
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("creating answer: %w", err)
	}
	if err := p.conn.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("setting local answer: %w", err)
	}
	p.emit(msg.NewAnswer(p.local, answer))
	p.setState(peerWaitingForIce)
	return nil
}

// applyAnswer completes the offerer's side of the handshake.
func (p *peer) applyAnswer(sdp webrtc.SessionDescription) error {
	if err := p.setRemoteDescription(sdp); err != nil {
		return fmt.Errorf("setting remote answer: %w", err)
	}
	return nil
}

// applyIce feeds one trickled candidate to the engine. Candidates that
// arrive before the remote description are buffered; the engine
// rejects them otherwise. Rejections are logged, not fatal.
func (p *peer) applyIce(candidate string) {
	p.mu.Lock()
	if p.conn.RemoteDescription() == nil {
		p.pending = append(p.pending, candidate)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if err := p.conn.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate}); err != nil {
		p.log.WithError(err).Warn("ice candidate rejected")
	}
}

// setRemoteDescription applies sdp and flushes candidates buffered
// before it arrived.
func (p *peer) setRemoteDescription(sdp webrtc.SessionDescription) error {
	if err := p.conn.SetRemoteDescription(sdp); err != nil {
		return err
	}

	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, candidate := range pending {
		if err := p.conn.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate}); err != nil {
			p.log.WithError(err).Warn("ice candidate rejected")
		}
	}
	return nil
}

// send writes one payload to the outbound channel.
func (p *peer) send(payload []byte) error {
	return p.outbound.Send(payload)
}

// close tears down the media session and its channels.
func (p *peer) close() {
	p.setState(peerClosed)
	if err := p.conn.Close(); err != nil {
		p.log.WithError(err).Debug("closing peer connection")
	}
}
