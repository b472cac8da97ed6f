package handlers

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillsync/session-relay/internal/models"
	"github.com/skillsync/session-relay/internal/redis"
)

const (
	joinCodeLength = 6
	sessionTTL     = 24 * time.Hour
	codeChars      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // Removed ambiguous chars
)

// Sessions serves the session-registration API the relay consumes for
// session existence. Scheduling, enrollment and the rest of the course
// system stay external; this is only the record the relay checks.
type Sessions struct {
	store *redis.Store
}

func NewSessions(store *redis.Store) *Sessions {
	return &Sessions{store: store}
}

// Create registers a new session (requires authentication)
func (s *Sessions) Create(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.MaxParticipants == 0 {
		req.MaxParticipants = 8
	}

	sessionID := uuid.New().String()
	code := generateJoinCode()

	session := models.SessionMetadata{
		ID:              sessionID,
		Code:            code,
		CreatorID:       userID.(string),
		CreatedAt:       time.Now(),
		MaxParticipants: req.MaxParticipants,
	}

	client := s.store.Client()
	ctx := s.store.Context()

	data, err := json.Marshal(session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	if err := client.Set(ctx, "session:"+sessionID, data, sessionTTL).Err(); err != nil {
		log.Printf("Failed to store session in Redis: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	// Code-to-ID mapping for join-code lookup
	if err := client.Set(ctx, "code:"+code, sessionID, sessionTTL).Err(); err != nil {
		log.Printf("Failed to store session code in Redis: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	log.Printf("Session registered: %s (code: %s) by user %s", sessionID, code, userID)

	c.JSON(http.StatusCreated, models.CreateSessionResponse{
		SessionID: sessionID,
		Code:      code,
	})
}

// Get returns session metadata by id or join code (public)
func (s *Sessions) Get(c *gin.Context) {
	identifier := c.Param("sessionId")

	sessionID, session, err := ValidateSessionExists(s.store, identifier)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	// Live participant count from the presence set
	count, _ := s.store.Client().SCard(s.store.Context(), "session:"+sessionID+":peers").Result()
	session.ParticipantCount = int(count)

	c.JSON(http.StatusOK, session)
}

// Delete removes a session (requires authentication and creator)
func (s *Sessions) Delete(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID := c.Param("sessionId")

	client := s.store.Client()
	ctx := s.store.Context()

	data, err := client.Get(ctx, "session:"+sessionID).Result()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	var session models.SessionMetadata
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse session data"})
		return
	}

	if session.CreatorID != userID.(string) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the session creator can delete the session"})
		return
	}

	client.Del(ctx, "session:"+sessionID)
	client.Del(ctx, "code:"+session.Code)
	client.Del(ctx, "session:"+sessionID+":peers")

	log.Printf("Session deleted: %s by user %s", sessionID, userID)

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

// generateJoinCode generates a random shareable code
func generateJoinCode() string {
	code := make([]byte, joinCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

// ValidateSessionExists resolves a session id or join code to a registered
// session record.
func ValidateSessionExists(store *redis.Store, identifier string) (string, *models.SessionMetadata, error) {
	client := store.Client()
	ctx := store.Context()

	sessionID := identifier

	// A join code is short; anything else is treated as an id
	if len(identifier) == joinCodeLength {
		id, err := client.Get(ctx, "code:"+identifier).Result()
		if err != nil {
			return "", nil, fmt.Errorf("session not found")
		}
		sessionID = id
	}

	data, err := client.Get(ctx, "session:"+sessionID).Result()
	if err != nil {
		return "", nil, fmt.Errorf("session not found")
	}

	var session models.SessionMetadata
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return "", nil, fmt.Errorf("invalid session record: %w", err)
	}

	return sessionID, &session, nil
}
