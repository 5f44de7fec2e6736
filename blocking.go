package netcode

import (
	"sync"

	"github.com/google/uuid"
)

// Blocking hosts a socket's event loop on its own goroutine and
// presents plain synchronous calls, so lockstep simulation code can
// poll the mesh without running the loop itself.
type Blocking struct {
	socket *Socket
	runErr chan error

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the matchmaker and starts the event loop. The
// returned handle is ready for Send/ReceiveAll/ReadyPeers immediately;
// peers become ready as their handshakes complete.
func Open(config Config) (*Blocking, error) {
	socket, err := Connect(config)
	if err != nil {
		return nil, err
	}

	b := &Blocking{
		socket: socket,
		runErr: make(chan error, 1),
	}
	go func() {
		b.runErr <- socket.Run()
	}()
	return b, nil
}

// LocalID returns the id the matchmaker assigned to this client.
func (b *Blocking) LocalID() uuid.UUID {
	return b.socket.LocalID()
}

// Send enqueues one packet towards a peer. Never blocks.
func (b *Blocking) Send(packet Packet) {
	b.socket.Send(packet)
}

// ReceiveAll drains the packets currently queued inbound.
func (b *Blocking) ReceiveAll() []Packet {
	return b.socket.ReceiveAll()
}

// ReadyPeers snapshots the peers currently ready to send and receive.
func (b *Blocking) ReadyPeers() []uuid.UUID {
	return b.socket.ReadyPeers()
}

// Players returns all mesh participants in a mesh-wide stable order.
func (b *Blocking) Players() []Player {
	return b.socket.Players()
}

// Close stops the loop and returns its exit error, if any. Safe to
// call more than once.
func (b *Blocking) Close() error {
	b.closeOnce.Do(func() {
		b.socket.Close()
		b.closeErr = <-b.runErr
	})
	return b.closeErr
}
