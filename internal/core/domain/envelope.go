package domain

import "encoding/json"

// EventType tags every envelope on the wire. The set is closed; the
// WebSocket handler dispatches with an exhaustive switch.
type EventType string

const (
	// client -> server
	EventCallRequest EventType = "call-request"
	EventCallAccept  EventType = "call-accept"
	EventCallReject  EventType = "call-reject"
	EventCallHangup  EventType = "call-hangup"
	EventCallJoin    EventType = "call-join"
	EventToggleMedia EventType = "call-toggle-media"

	// server -> client
	EventCallRinging    EventType = "call-ringing"
	EventCallIncoming   EventType = "call-incoming"
	EventCallAccepted   EventType = "call-accepted"
	EventCallRejected   EventType = "call-rejected"
	EventCallCancelled  EventType = "call-cancelled"
	EventCallTimeout    EventType = "call-timeout"
	EventCallDismissed  EventType = "call-dismissed"
	EventRoomJoined     EventType = "room-joined"
	EventRoomPeerJoined EventType = "room-peer-joined"
	EventRoomPeerLeft   EventType = "room-peer-left"
	EventMediaToggled   EventType = "call-media-toggled"
	EventOnlineUsers    EventType = "online-users"

	// relayed verbatim between participants
	EventWebRTCOffer  EventType = "webrtc-offer"
	EventWebRTCAnswer EventType = "webrtc-answer"
	EventWebRTCICE    EventType = "webrtc-ice"

	// either direction; non-fatal diagnostic, triggers cleanup on receipt
	EventCallError EventType = "call-error"
)

// PeerInfo describes one existing participant to a joiner.
type PeerInfo struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// Envelope is the single JSON message shape carried over the transport.
// Fields are populated per EventType; unused fields are omitted. SDP and
// ICE payloads are opaque to the relay and forwarded verbatim.
type Envelope struct {
	Type       EventType       `json:"type"`
	CallID     CallID          `json:"callId,omitempty"`
	CallType   CallKind        `json:"callType,omitempty"`
	From       UserID          `json:"fromUserId,omitempty"`
	Target     UserID          `json:"targetUserId,omitempty"`
	PeerID     UserID          `json:"peerId,omitempty"`
	PeerName   string          `json:"peerName,omitempty"`
	PeerAvatar string          `json:"peerAvatar,omitempty"`
	Peers      []PeerInfo      `json:"peers,omitempty"`
	SDP        json.RawMessage `json:"sdp,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	MediaKind  string          `json:"kind,omitempty"`
	Enabled    *bool           `json:"enabled,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Message    string          `json:"message,omitempty"`
	Users      []UserID        `json:"users,omitempty"`
	ICEServers []string        `json:"iceServers,omitempty"`
}
