// Package netcode connects small meshes of authenticated clients over
// unreliable, unordered WebRTC data channels suitable for real-time
// synchronization, e.g. rollback-style game networking.
//
// A central matchmaker assigns each client a stable id and brokers the
// pairwise handshakes; once a handshake completes, application packets
// flow peer to peer without transiting the matchmaker. The Socket type
// wraps one matchmaker connection plus one driver per remote peer with
// a polling, non-blocking send/receive interface.
package netcode

import (
	"sort"

	"github.com/google/uuid"
)

// Packet is one application payload to or from a peer. The payload is
// an opaque octet string; the mesh neither parses nor fragments it.
// Delivery is neither ordered nor guaranteed.
type Packet struct {
	Peer    uuid.UUID
	Payload []byte
}

// Player is one mesh participant as seen by a lockstep session setup.
type Player struct {
	ID    uuid.UUID
	Local bool
}

// sortPlayers yields the same participant order on every client.
func sortPlayers(players []Player) {
	sort.Slice(players, func(i, j int) bool {
		return players[i].ID.String() < players[j].ID.String()
	})
}
