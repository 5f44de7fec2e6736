package netcode

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// DefaultStunServer is used when no ICE servers are configured.
const DefaultStunServer = "stun:stun.stunprotocol.org:3478"

// Config describes how to reach the matchmaker and which ICE servers
// the peer connections use.
type Config struct {
	// Address and Port locate the matchmaker.
	Address string
	Port    uint16

	// User and Password authenticate against the matchmaker's user
	// store via HTTP Basic on the websocket upgrade.
	User     string
	Password string

	// ICEServers overrides the default single STUN server. An
	// explicit empty (non-nil) slice disables external servers, which
	// is enough for host-candidate connectivity on one network.
	ICEServers []webrtc.ICEServer

	// Log receives the socket's log entries. Defaults to the standard
	// logrus logger.
	Log *logrus.Entry
}

// withDefaults fills the zero fields.
func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = "127.0.0.1"
	}
	if c.ICEServers == nil {
		c.ICEServers = []webrtc.ICEServer{{URLs: []string{DefaultStunServer}}}
	}
	if c.Log == nil {
		c.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}

// loginURL is the authenticated websocket endpoint.
func (c Config) loginURL() string {
	return fmt.Sprintf("ws://%s:%d/login", c.Address, c.Port)
}

// rtcConfiguration builds the media engine configuration.
func (c Config) rtcConfiguration() webrtc.Configuration {
	return webrtc.Configuration{ICEServers: c.ICEServers}
}
