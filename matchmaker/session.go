package matchmaker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/trobanga/netcode/msg"
)

const (
	// heartbeatInterval is how often pings are sent to the client.
	heartbeatInterval = 5 * time.Second

	// clientTimeout closes the session when no inbound frame (text,
	// ping or pong) arrived for this long.
	clientTimeout = 10 * time.Second

	// writeTimeout bounds a single frame write.
	writeTimeout = 10 * time.Second
)

type sessionState int

const (
	stateConnecting sessionState = iota
	stateAuthenticated
	stateRegistered
	stateClosing
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "Connecting"
	case stateAuthenticated:
		return "Authenticated"
	case stateRegistered:
		return "Registered"
	case stateClosing:
		return "Closing"
	}

	return ""
}

// Session is one authenticated signaling connection. It translates
// between wire frames and registry events, keeps the heartbeat, and
// deregisters on any error.
type Session struct {
	id       uuid.UUID
	conn     *websocket.Conn
	registry *Registry

	mailbox Mailbox
	inbound chan *msg.PeerMessage

	// ids this session can currently address, maintained from the
	// Peers snapshot and NewPeer/PeerDisconnected events. Unknown
	// recipients are dropped before they reach the registry.
	peers map[uuid.UUID]struct{}

	state sessionState
	log   *logrus.Entry
}

// newSession wraps an already authenticated websocket connection.
func newSession(id uuid.UUID, conn *websocket.Conn, registry *Registry, log *logrus.Entry) *Session {
	return &Session{
		id:       id,
		conn:     conn,
		registry: registry,
		mailbox:  make(Mailbox, mailboxSize),
		inbound:  make(chan *msg.PeerMessage, mailboxSize),
		peers:    make(map[uuid.UUID]struct{}),
		state:    stateAuthenticated,
		log:      log.WithFields(logrus.Fields{"component": "session", "id": id}),
	}
}

// run drives the session until the transport closes or the heartbeat
// times out. It blocks; the HTTP handler calls it on the upgraded
// connection's goroutine.
func (s *Session) run() {
	defer s.conn.Close()
	defer func() {
		s.state = stateClosing
		s.log.WithField("state", s.state).Debug("session stopped")
	}()

	// First frame on the wire is always the assigned id.
	if err := s.writeEnvelope(msg.NewId(s.id)); err != nil {
		s.log.WithError(err).Error("failed to send id")
		return
	}

	if err := s.registry.Connect(s.id, s.mailbox); err != nil {
		s.log.WithError(err).Error("rejecting session")
		s.close(websocket.ClosePolicyViolation, err.Error())
		return
	}
	defer s.registry.Disconnect(s.id)
	s.state = stateRegistered

	go s.readPump()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.mailbox:
			if err := s.handleEvent(ev); err != nil {
				s.log.WithError(err).Warn("write failed, closing session")
				return
			}

		case pm, ok := <-s.inbound:
			if !ok {
				// Transport closed or protocol violation.
				return
			}
			if _, known := s.peers[pm.PeerID]; !known {
				s.log.WithField("to", pm.PeerID).Debug("dropping message for unknown peer")
				continue
			}
			s.registry.Route(s.id, pm)

		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.log.WithError(err).Warn("ping failed, closing session")
				return
			}
		}
	}
}

func (s *Session) handleEvent(ev Event) error {
	switch ev.Type {
	case EventPeers:
		// The second frame on the wire: the snapshot's ids. The
		// mailboxes stay registry-internal.
		ids := make([]uuid.UUID, 0, len(ev.Peers))
		for id := range ev.Peers {
			s.peers[id] = struct{}{}
			ids = append(ids, id)
		}
		return s.writeEnvelope(msg.NewPeers(ids))
	case EventNewPeer:
		s.peers[ev.ID] = struct{}{}
		return s.writeEnvelope(msg.NewNewPeer(ev.ID))
	case EventPeerDisconnected:
		delete(s.peers, ev.ID)
		return s.writeEnvelope(msg.NewPeerDisconnected(ev.ID))
	case EventEnvelope:
		return s.writeEnvelope(ev.Envelope)
	}
	return nil
}

func (s *Session) writeEnvelope(e msg.Envelope) error {
	data, err := msg.Marshal(e)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) close(code int, reason string) {
	deadline := time.Now().Add(writeTimeout)
	message := websocket.FormatCloseMessage(code, reason)
	s.conn.WriteControl(websocket.CloseMessage, message, deadline)
}

// readPump owns all reads on the connection. Every inbound frame,
// control frames included, refreshes the read deadline that implements
// the idle timeout.
func (s *Session) readPump() {
	defer close(s.inbound)

	refresh := func() { s.conn.SetReadDeadline(time.Now().Add(clientTimeout)) }
	refresh()

	s.conn.SetPongHandler(func(string) error {
		refresh()
		return nil
	})
	s.conn.SetPingHandler(func(appData string) error {
		refresh()
		deadline := time.Now().Add(writeTimeout)
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), deadline)
	})

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("read failed")
			}
			return
		}
		refresh()
		if kind != websocket.TextMessage {
			continue
		}

		var pm msg.PeerMessage
		if err := json.Unmarshal(data, &pm); err == nil {
			select {
			case s.inbound <- &pm:
			default:
				s.log.Warn("inbound queue full, dropping frame")
			}
			continue
		}
		if e, err := msg.Unmarshal(data); err == nil {
			// Server-addressed envelopes carry no behavior yet.
			s.log.WithField("envelope", e.String()).Debug("received envelope")
			continue
		}

		s.log.Warn("protocol violation, closing session")
		s.close(websocket.CloseUnsupportedData, "malformed frame")
		return
	}
}
