package service

import "time"

// Config carries the tunables the relay does not hardcode.
type Config struct {
	// RingTimeout is how long an unanswered call rings before both sides
	// receive call-timeout.
	RingTimeout time.Duration
	// MaxPeers caps the mesh size of a single call.
	MaxPeers int
	// ICEServers is the static STUN/TURN URL list handed to clients at
	// session start. The relay never talks to these servers itself.
	ICEServers []string
}
