package models

import "time"

// SessionMetadata stores information about a registered course session
type SessionMetadata struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"` // Short, shareable join code (e.g., "ABCD123")
	CreatorID        string    `json:"creatorId"`
	CreatedAt        time.Time `json:"createdAt"`
	MaxParticipants  int       `json:"maxParticipants"`
	ParticipantCount int       `json:"participantCount"`
}

// CreateSessionRequest is the request body for registering a session
type CreateSessionRequest struct {
	MaxParticipants int `json:"maxParticipants" binding:"min=0,max=16"`
}

// CreateSessionResponse is the response for registering a session
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}
