package netcode

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/trobanga/netcode/msg"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

// testConfig disables external STUN servers; two local peers connect
// over host candidates alone.
func testConfig() Config {
	return Config{ICEServers: []webrtc.ICEServer{}, Log: testLog()}.withDefaults()
}

// relay shuttles signaling between two drivers the way the matchmaker
// otherwise would.
func relay(t *testing.T, a, b *peer, aSig, bSig chan *msg.PeerMessage, stop chan struct{}) {
	t.Helper()
	dispatch := func(to *peer, e msg.Envelope) {
		var err error
		switch m := e.(type) {
		case *msg.Offer:
			err = to.acceptOffer(m.Offer)
		case *msg.Answer:
			err = to.applyAnswer(m.Answer)
		case *msg.IceCandidate:
			to.applyIce(m.Candidate)
		}
		if err != nil {
			// Surfaces through waitReady timing out.
			t.Logf("dispatch %s: %v", e, err)
		}
	}
	for {
		select {
		case pm := <-aSig:
			dispatch(b, pm.Content)
		case pm := <-bSig:
			dispatch(a, pm.Content)
		case <-stop:
			return
		}
	}
}

func waitReady(t *testing.T, peers ...*peer) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for {
		ready := 0
		for _, p := range peers {
			if p.isReady() {
				ready++
			}
		}
		if ready == len(peers) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d peers became ready", ready, len(peers))
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestPeerHandshakeOpensChannel(t *testing.T) {
	if testing.Short() {
		t.Skip("establishes real peer connections")
	}

	aliceID, bobID := uuid.New(), uuid.New()
	aliceSig := make(chan *msg.PeerMessage, queueSize)
	bobSig := make(chan *msg.PeerMessage, queueSize)
	aliceIn := make(chan Packet, queueSize)
	bobIn := make(chan Packet, queueSize)

	alice, err := newPeer(aliceID, bobID, testConfig(), aliceSig, aliceIn, testLog())
	require.NoError(t, err)
	defer alice.close()

	bob, err := newPeer(bobID, aliceID, testConfig(), bobSig, bobIn, testLog())
	require.NoError(t, err)
	defer bob.close()

	stop := make(chan struct{})
	defer close(stop)
	go relay(t, alice, bob, aliceSig, bobSig, stop)

	require.NoError(t, alice.initiateOffer())
	waitReady(t, alice, bob)

	// The channel is unreliable; retry until the payload shows up.
	payload := []byte("hello, world")
	deadline := time.Now().Add(10 * time.Second)
	for {
		require.NoError(t, alice.send(payload))
		select {
		case packet := <-bobIn:
			require.Equal(t, aliceID, packet.Peer)
			require.True(t, bytes.Equal(payload, packet.Payload))
			return
		case <-time.After(200 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("payload never arrived")
		}
	}
}

func TestPeerBuffersEarlyCandidates(t *testing.T) {
	if testing.Short() {
		t.Skip("establishes real peer connections")
	}

	aliceID, bobID := uuid.New(), uuid.New()
	sig := make(chan *msg.PeerMessage, queueSize)
	in := make(chan Packet, queueSize)

	alice, err := newPeer(aliceID, bobID, testConfig(), sig, in, testLog())
	require.NoError(t, err)
	defer alice.close()

	// A candidate before any remote description must neither error
	// nor reach the engine yet.
	alice.applyIce("candidate:1 1 UDP 2122252543 192.0.2.7 54400 typ host")

	alice.mu.Lock()
	buffered := len(alice.pending)
	alice.mu.Unlock()
	require.Equal(t, 1, buffered)
}
