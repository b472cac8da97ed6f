package models

import "github.com/pion/webrtc/v4"

// SignalType represents the type of a signaling message
type SignalType string

const (
	// Client -> relay
	SignalTypeJoin                SignalType = "join"
	SignalTypeLeave               SignalType = "leave"
	SignalTypeOffer               SignalType = "offer"
	SignalTypeAnswer              SignalType = "answer"
	SignalTypeICECandidate        SignalType = "ice-candidate"
	SignalTypeMediaStateChange    SignalType = "media-state-change"
	SignalTypeRequestParticipants SignalType = "request-participants"

	// Peer-assisted recovery, forwarded by the relay
	SignalTypeForceJoin         SignalType = "force-join-notification"
	SignalTypeRestartConnection SignalType = "restart-connection"
	SignalTypeDebugStatus       SignalType = "debug-connection-status"

	// Relay -> client
	SignalTypeConnectionAck SignalType = "connection-ack"
	SignalTypeJoinAck       SignalType = "join-ack"
	SignalTypeMessageAck    SignalType = "message-ack"
	SignalTypeExistingUsers SignalType = "existing-users"
	SignalTypeUserJoined    SignalType = "user-joined"
	SignalTypeUserLeft      SignalType = "user-left"
)

// SignalMessage is the wire envelope for all signaling traffic. Exactly one
// of the payload fields is set, depending on Type. UserID and UserName on
// forwarded messages are always stamped by the relay from its registry, never
// trusted from the sender's payload.
type SignalMessage struct {
	Type         SignalType `json:"type"`
	UserID       string     `json:"userId,omitempty"`
	UserName     string     `json:"userName,omitempty"`
	TargetUserID string     `json:"targetUserId,omitempty"`
	SessionID    string     `json:"sessionId,omitempty"`

	// SDP/ICE payloads are carried opaquely; the relay never inspects them.
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`

	// media-state-change payload
	MediaType string `json:"mediaType,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`

	// existing-users payload
	Users []Participant `json:"users,omitempty"`

	// connection-ack payload
	Participants int `json:"participants,omitempty"`

	// debug-connection-status payload
	Status *ConnectionReport `json:"status,omitempty"`

	// join-ack / message-ack payload
	Message      string     `json:"message,omitempty"`
	OriginalType SignalType `json:"originalType,omitempty"`
}

// ConnectionReport is the self-reported peer-link state a client broadcasts
// so counterparts can detect one-way connections.
type ConnectionReport struct {
	UserID string           `json:"userId"`
	Links  []PeerLinkReport `json:"connections"`
}

// PeerLinkReport describes one peer link from the reporter's point of view.
type PeerLinkReport struct {
	PeerID               string   `json:"peerId"`
	ICEState             string   `json:"iceState"`
	SignalingState       string   `json:"signalState"`
	HasRemoteDescription bool     `json:"hasRemoteDescription"`
	ConnectedStreams     []string `json:"connectedStreams"`
}
