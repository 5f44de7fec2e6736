package netcode

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/trobanga/netcode/msg"
)

// ErrProtocol is returned when the matchmaker violates the signaling
// protocol, e.g. when the first frame is not an Id.
var ErrProtocol = errors.New("signaling protocol violation")

const (
	// queueSize bounds the socket's internal queues. Sends to these
	// channels never block; the system would rather shed than stall.
	queueSize = 10000

	// writeWait bounds a single signaling frame write.
	writeWait = 10 * time.Second
)

type queryKind int

const (
	queryReadyPeers queryKind = iota + 1
	queryPeers
)

type query struct {
	kind  queryKind
	reply chan []uuid.UUID
}

// Socket is the transport façade: one matchmaker connection plus one
// peer driver per remote. The event loop in Run owns all peer state;
// the exported API communicates with it through channels only.
type Socket struct {
	id     uuid.UUID
	config Config
	conn   *websocket.Conn

	peers map[uuid.UUID]*peer // owned by the Run loop

	sigIn   chan msg.Envelope
	sigOut  chan *msg.PeerMessage
	outData chan Packet
	inData  chan Packet
	queries chan *query
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once

	log *logrus.Entry
}

// basicAuth encodes credentials for the upgrade request.
func basicAuth(user, password string) string {
	creds := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
	return "Basic " + creds
}

// Connect authenticates against the matchmaker, consumes the assigned
// id, and returns a socket ready for Run. Use Open for the blocking
// variant that drives the loop for you.
func Connect(config Config) (*Socket, error) {
	config = config.withDefaults()

	header := http.Header{}
	header.Set("Authorization", basicAuth(config.User, config.Password))
	conn, resp, err := websocket.DefaultDialer.Dial(config.loginURL(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("connecting to matchmaker: %w: unauthorized", err)
		}
		return nil, fmt.Errorf("connecting to matchmaker: %w", err)
	}

	// The first frame is always the assigned id.
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading id frame: %w", err)
	}
	first, err := msg.Unmarshal(data)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	assigned, ok := first.(*msg.Id)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("%w: first frame must be Id, got %s", ErrProtocol, first)
	}

	s := &Socket{
		id:      assigned.ID,
		config:  config,
		conn:    conn,
		peers:   make(map[uuid.UUID]*peer),
		sigIn:   make(chan msg.Envelope, queueSize),
		sigOut:  make(chan *msg.PeerMessage, queueSize),
		outData: make(chan Packet, queueSize),
		inData:  make(chan Packet, queueSize),
		queries: make(chan *query),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     config.Log.WithFields(logrus.Fields{"component": "socket", "id": assigned.ID}),
	}
	return s, nil
}

// LocalID returns the id the matchmaker assigned to this client.
func (s *Socket) LocalID() uuid.UUID {
	return s.id
}

// Run drives the event loop until the signaling transport closes or
// Close is called. It blocks; peer drivers and their channels are torn
// down on the way out.
func (s *Socket) Run() error {
	defer close(s.done)
	defer s.teardown()

	go s.readPump()

	for {
		select {
		case e, ok := <-s.sigIn:
			if !ok {
				return nil
			}
			s.handleSignal(e)

		case pm := <-s.sigOut:
			if err := s.writePeerMessage(pm); err != nil {
				return fmt.Errorf("writing signaling frame: %w", err)
			}

		case packet := <-s.outData:
			if p, ok := s.peers[packet.Peer]; ok {
				if err := p.send(packet.Payload); err != nil {
					s.log.WithError(err).WithField("peer", packet.Peer).Debug("send failed")
				}
			}

		case q := <-s.queries:
			q.reply <- s.answer(q.kind)

		case <-s.quit:
			return nil
		}
	}
}

func (s *Socket) teardown() {
	for id, p := range s.peers {
		p.close()
		delete(s.peers, id)
	}
	s.conn.Close()
}

// handleSignal dispatches one inbound envelope. Per-peer negotiation
// errors remove that peer only; the rest of the mesh is unaffected.
func (s *Socket) handleSignal(e msg.Envelope) {
	switch m := e.(type) {
	case *msg.Id:
		// Already consumed during Connect; repeated ids are noise.

	case *msg.NewPeer:
		p, err := s.requirePeer(m.ID)
		if err != nil {
			s.log.WithError(err).WithField("peer", m.ID).Error("creating peer")
			return
		}
		if err := p.initiateOffer(); err != nil {
			s.dropPeer(m.ID, err)
		}

	case *msg.Peers:
		// The snapshot of everyone already connected. Each listed
		// peer received a NewPeer for us and will offer; we only
		// prepare state and wait.
		for _, id := range m.IDs {
			if _, err := s.requirePeer(id); err != nil {
				s.log.WithError(err).WithField("peer", id).Error("creating peer")
			}
		}

	case *msg.Offer:
		p, err := s.requirePeer(m.ID)
		if err != nil {
			s.log.WithError(err).WithField("peer", m.ID).Error("creating peer")
			return
		}
		if err := p.acceptOffer(m.Offer); err != nil {
			s.dropPeer(m.ID, err)
		}

	case *msg.Answer:
		if p, ok := s.peers[m.ID]; ok {
			if err := p.applyAnswer(m.Answer); err != nil {
				s.dropPeer(m.ID, err)
			}
		}

	case *msg.IceCandidate:
		if p, ok := s.peers[m.ID]; ok {
			p.applyIce(m.Candidate)
		}

	case *msg.PeerDisconnected:
		if p, ok := s.peers[m.ID]; ok {
			p.close()
			delete(s.peers, m.ID)
			s.log.WithField("peer", m.ID).Info("peer disconnected")
		}
	}
}

// requirePeer finds or creates the driver for a remote id.
func (s *Socket) requirePeer(id uuid.UUID) (*peer, error) {
	if p, ok := s.peers[id]; ok {
		return p, nil
	}
	p, err := newPeer(s.id, id, s.config, s.sigOut, s.inData, s.log)
	if err != nil {
		return nil, err
	}
	s.peers[id] = p
	return p, nil
}

func (s *Socket) dropPeer(id uuid.UUID, err error) {
	s.log.WithError(err).WithField("peer", id).Error("negotiation failed, dropping peer")
	if p, ok := s.peers[id]; ok {
		p.close()
		delete(s.peers, id)
	}
}

func (s *Socket) answer(kind queryKind) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.peers))
	for id, p := range s.peers {
		if kind == queryReadyPeers && !p.isReady() {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (s *Socket) writePeerMessage(pm *msg.PeerMessage) error {
	data, err := json.Marshal(pm)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readPump owns all reads on the signaling connection and feeds the
// loop. The matchmaker's pings are answered by the default handler;
// the loop observes transport death through the channel close.
func (s *Socket) readPump() {
	defer close(s.sigIn)

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("signaling read failed")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		e, err := msg.Unmarshal(data)
		if err != nil {
			s.log.WithError(err).Warn("dropping malformed signaling frame")
			continue
		}
		select {
		case s.sigIn <- e:
		default:
			s.log.Warn("signaling queue full, dropping frame")
		}
	}
}

// Send enqueues one packet towards a peer. It never blocks and never
// fails; packets for unknown or not yet ready peers are dropped, which
// the unreliable data plane already forces callers to tolerate.
func (s *Socket) Send(packet Packet) {
	select {
	case s.outData <- packet:
	default:
	}
}

// ReceiveAll drains the packets currently queued inbound. It returns
// nil when idle and never blocks.
func (s *Socket) ReceiveAll() []Packet {
	var packets []Packet
	for {
		select {
		case p := <-s.inData:
			packets = append(packets, p)
		default:
			return packets
		}
	}
}

// ReadyPeers returns the peers whose data channel has opened in at
// least one direction. The snapshot is computed inside the event loop:
// before Run starts the call waits for the loop, and once the loop has
// exited it returns nil.
func (s *Socket) ReadyPeers() []uuid.UUID {
	return s.ask(queryReadyPeers)
}

// Peers returns every remote the socket currently tracks, ready or
// not.
func (s *Socket) Peers() []uuid.UUID {
	return s.ask(queryPeers)
}

func (s *Socket) ask(kind queryKind) []uuid.UUID {
	q := &query{kind: kind, reply: make(chan []uuid.UUID, 1)}
	select {
	case s.queries <- q:
		return <-q.reply
	case <-s.done:
		return nil
	}
}

// Players returns all mesh participants, self included, in an order
// that is identical on every client. Lockstep session setup needs a
// consistent player order across the mesh.
func (s *Socket) Players() []Player {
	players := []Player{{ID: s.id, Local: true}}
	for _, id := range s.Peers() {
		players = append(players, Player{ID: id})
	}
	sortPlayers(players)
	return players
}

// Close stops the event loop and tears down every peer. It blocks
// until the loop has exited; safe to call more than once.
func (s *Socket) Close() {
	s.once.Do(func() { close(s.quit) })
	<-s.done
}
