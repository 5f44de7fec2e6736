// Package matchmaker implements the signaling service: it
// authenticates clients, assigns each a stable id, and brokers the
// pairwise WebRTC handshakes between every pair of connected clients.
// Application payloads never transit the matchmaker; once the
// handshakes complete the clients talk to each other directly.
package matchmaker

import (
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trobanga/netcode/msg"
)

// ErrAlreadyConnected is returned by Connect when a session with the
// same client id is present in the registry.
var ErrAlreadyConnected = errors.New("already connected")

// ErrRegistryStopped is returned by Connect during shutdown.
var ErrRegistryStopped = errors.New("registry stopped")

// mailboxSize bounds a session mailbox. A session that cannot drain
// its mailbox is treated as disconnected.
const mailboxSize = 256

// EventType defines event type
type EventType int

// Event types delivered to session mailboxes.
const (
	EventPeers EventType = iota + 1
	EventNewPeer
	EventPeerDisconnected
	EventEnvelope
)

// String converts EventType to string.
func (e EventType) String() string {
	switch e {
	case EventPeers:
		return "EventPeers"
	case EventNewPeer:
		return "EventNewPeer"
	case EventPeerDisconnected:
		return "EventPeerDisconnected"
	case EventEnvelope:
		return "EventEnvelope"
	}

	return ""
}

// Event is what the registry pushes into a session mailbox. ID is the
// peer the event concerns; Peers is only set on EventPeers, Envelope
// only on EventEnvelope.
type Event struct {
	Type     EventType
	ID       uuid.UUID
	Peers    map[uuid.UUID]Mailbox
	Envelope msg.Envelope
}

// Mailbox is the addressable sink a session registers with the
// registry. All envelopes for the session are pushed into it in FIFO
// order.
type Mailbox chan Event

type cmdKind int

const (
	cmdConnect cmdKind = iota + 1
	cmdDisconnect
	cmdRoute
	cmdSessions
	cmdStop
)

type cmd struct {
	kind    cmdKind
	id      uuid.UUID
	mailbox Mailbox
	from    uuid.UUID
	pm      *msg.PeerMessage
	err     chan error
	ids     chan []uuid.UUID
}

// Registry owns the id to mailbox mapping. All mutations happen inside
// the actor goroutine; callers interact through commands.
type Registry struct {
	cmds chan *cmd // Shouldn't be a buffered channel because the actor select acts as a lock
	done chan struct{}

	sessions map[uuid.UUID]Mailbox
	log      *logrus.Entry
}

// NewRegistry creates a registry and starts its actor.
func NewRegistry(log *logrus.Entry) *Registry {
	r := &Registry{
		cmds:     make(chan *cmd),
		done:     make(chan struct{}),
		sessions: make(map[uuid.UUID]Mailbox),
		log:      log.WithField("component", "registry"),
	}

	go r.actor()

	return r
}

// Connect registers a session mailbox under id and fans out the
// announcements: the newcomer receives a snapshot of every other
// session, every other session receives a NewPeer. Fails with
// ErrAlreadyConnected if id is present.
func (r *Registry) Connect(id uuid.UUID, mailbox Mailbox) error {
	c := &cmd{kind: cmdConnect, id: id, mailbox: mailbox, err: make(chan error, 1)}
	if !r.submit(c) {
		return ErrRegistryStopped
	}
	return <-c.err
}

// Disconnect removes id and broadcasts PeerDisconnected to every
// remaining session. Calling it for an absent id is a no-op.
func (r *Registry) Disconnect(id uuid.UUID) {
	c := &cmd{kind: cmdDisconnect, id: id, err: make(chan error, 1)}
	if r.submit(c) {
		<-c.err
	}
}

// Route delivers pm.Content to the session pm.PeerID names. Unroutable
// messages are dropped; the peer likely raced a disconnect.
func (r *Registry) Route(from uuid.UUID, pm *msg.PeerMessage) {
	r.submit(&cmd{kind: cmdRoute, from: from, pm: pm})
}

// Sessions returns the ids currently registered.
func (r *Registry) Sessions() []uuid.UUID {
	c := &cmd{kind: cmdSessions, ids: make(chan []uuid.UUID, 1)}
	if !r.submit(c) {
		return nil
	}
	return <-c.ids
}

// Stop terminates the actor. Registered mailboxes are not closed;
// their sessions are expected to be shutting down as well. Commands
// issued after Stop are no-ops.
func (r *Registry) Stop() {
	r.submit(&cmd{kind: cmdStop})
	<-r.done
}

// submit hands a command to the actor, reporting false once the actor
// has stopped. Sessions racing a shutdown must not block here.
func (r *Registry) submit(c *cmd) bool {
	select {
	case r.cmds <- c:
		return true
	case <-r.done:
		return false
	}
}

func (r *Registry) actor() {
	defer close(r.done)

	for c := range r.cmds {
		switch c.kind {
		case cmdConnect:
			c.err <- r.connect(c.id, c.mailbox)
		case cmdDisconnect:
			r.disconnect(c.id)
			c.err <- nil
		case cmdRoute:
			r.route(c.from, c.pm)
		case cmdSessions:
			ids := make([]uuid.UUID, 0, len(r.sessions))
			for id := range r.sessions {
				ids = append(ids, id)
			}
			c.ids <- ids
		case cmdStop:
			return
		}
	}
}

func (r *Registry) connect(id uuid.UUID, mailbox Mailbox) error {
	if _, ok := r.sessions[id]; ok {
		return ErrAlreadyConnected
	}

	// Install the newcomer before any announcement goes out so that an
	// offer prompted by NewPeer can already be routed back.
	r.sessions[id] = mailbox

	peers := make(map[uuid.UUID]Mailbox, len(r.sessions)-1)
	for pid, mb := range r.sessions {
		if pid == id {
			continue
		}
		peers[pid] = mb
	}

	var dead []uuid.UUID
	if !r.deliver(id, mailbox, Event{Type: EventPeers, Peers: peers}) {
		dead = append(dead, id)
	}
	for pid, mb := range peers {
		if !r.deliver(pid, mb, Event{Type: EventNewPeer, ID: id}) {
			dead = append(dead, pid)
		}
	}
	for _, pid := range dead {
		r.disconnect(pid)
	}

	r.log.WithField("id", id).Info("session connected")
	return nil
}

func (r *Registry) disconnect(id uuid.UUID) {
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)

	var dead []uuid.UUID
	for pid, mb := range r.sessions {
		if !r.deliver(pid, mb, Event{Type: EventPeerDisconnected, ID: id}) {
			dead = append(dead, pid)
		}
	}
	for _, pid := range dead {
		r.disconnect(pid)
	}

	r.log.WithField("id", id).Info("session disconnected")
}

func (r *Registry) route(from uuid.UUID, pm *msg.PeerMessage) {
	if pm.PeerID == from {
		// Never route an envelope back to its sender.
		return
	}
	mb, ok := r.sessions[pm.PeerID]
	if !ok {
		r.log.WithFields(logrus.Fields{"from": from, "to": pm.PeerID}).
			Debug("dropping envelope for unknown peer")
		return
	}
	if !r.deliver(pm.PeerID, mb, Event{Type: EventEnvelope, ID: from, Envelope: pm.Content}) {
		r.disconnect(pm.PeerID)
	}
}

// deliver pushes an event without blocking the actor. A full mailbox
// means the session stopped draining; the caller removes it.
func (r *Registry) deliver(id uuid.UUID, mb Mailbox, ev Event) bool {
	select {
	case mb <- ev:
		return true
	default:
		r.log.WithFields(logrus.Fields{"id": id, "event": ev.Type}).
			Warn("mailbox full, treating session as disconnected")
		return false
	}
}
