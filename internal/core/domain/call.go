package domain

import "time"

type CallKind string

const (
	KindVoice CallKind = "voice"
	KindVideo CallKind = "video"
)

// CallState is the server-side session state. The RINGING/INCOMING split the
// clients see is a matter of which notification each side received; the
// session itself holds one state.
type CallState string

const (
	StateRinging    CallState = "ringing"    // waiting for the callee to accept
	StateConnecting CallState = "connecting" // accepted, first PeerLink negotiating
	StateActive     CallState = "active"     // at least one PeerLink connected
	StateEnded      CallState = "ended"      // terminal
)

// Participant is one member of a call.
type Participant struct {
	UserID       UserID
	DisplayName  string
	Avatar       string
	JoinedAt     time.Time
	AudioEnabled bool
	VideoEnabled bool
}

// PeerLink is one negotiated media connection between two participants.
// The offerer side initiates SDP negotiation; at most one link exists per
// unordered pair, so concurrent offers (glare) cannot happen.
type PeerLink struct {
	Offerer  UserID
	Answerer UserID
}
