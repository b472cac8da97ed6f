package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skillsync/session-relay/config"
	"github.com/skillsync/session-relay/internal/middleware"
	"github.com/skillsync/session-relay/internal/models"
	"github.com/skillsync/session-relay/internal/redis"
	"github.com/skillsync/session-relay/internal/registry"
)

// DefaultSessionID is the session a connection with a blank sessionId is
// admitted into when the relay runs in permissive mode.
const DefaultSessionID = "lobby"

const presenceTTL = 24 * time.Hour

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Relay routes signaling traffic between the participants of a session. It
// owns the connection registry; its lifecycle is tied to the server's.
type Relay struct {
	registry  *registry.Registry
	store     *redis.Store // nil disables presence mirroring
	cfg       config.RelayConfig
	jwtSecret string
}

func NewRelay(reg *registry.Registry, store *redis.Store, cfg config.RelayConfig, jwtSecret string) *Relay {
	return &Relay{
		registry:  reg,
		store:     store,
		cfg:       cfg,
		jwtSecret: jwtSecret,
	}
}

// Registry exposes the relay's registry for census logging.
func (h *Relay) Registry() *registry.Registry {
	return h.registry
}

// wsClient wraps one signaling connection. Writes go through the buffered
// send channel so the registry never blocks on a slow peer.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// Close satisfies registry.Conn; the registry calls it when this connection
// is evicted by a reconnect.
func (c *wsClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return c.conn.Close()
}

// HandleSignaling handles WebSocket connections for session signaling
func (h *Relay) HandleSignaling(c *gin.Context) {
	sessionID := c.Query("sessionId")
	userID := c.Query("userId")
	userName := c.Query("userName")

	if h.cfg.RequireAuth {
		claims, err := middleware.ParseToken(c.Query("token"), h.jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		if userID == "" {
			userID = claims.UserID
		}
	}

	if sessionID == "" {
		if !h.cfg.AllowDefaultSession {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
			return
		}
		sessionID = DefaultSessionID
	}

	if h.cfg.RequireSession && h.store != nil && sessionID != DefaultSessionID {
		resolved, _, err := ValidateSessionExists(h.store, sessionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		sessionID = resolved
	}

	// Synthesize missing identity; userId uniqueness per tab is the
	// caller's responsibility.
	if userID == "" {
		userID = "user-" + uuid.New().String()[:8]
	}
	if userName == "" {
		prefix := userID
		if len(prefix) > 5 {
			prefix = prefix[:5]
		}
		userName = "User " + prefix
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}

	entry, roster, evicted := h.registry.Admit(client, sessionID, userID, userName)
	if evicted != nil {
		log.Printf("Evicted stale connection %s for %s in session %s", evicted.ConnectionID, userID, sessionID)
	}

	h.presenceAdd(sessionID, userID)

	log.Printf("User %s (%s) joined session %s (%d participants)", userName, userID, sessionID, len(roster)+1)

	// Acknowledge with the finalized identity
	h.send(client, models.SignalMessage{
		Type:         models.SignalTypeConnectionAck,
		Message:      "Connected to server",
		UserID:       entry.UserID,
		UserName:     entry.UserName,
		SessionID:    entry.SessionID,
		Participants: len(roster) + 1,
	})

	if len(roster) > 0 {
		h.send(client, models.SignalMessage{
			Type:  models.SignalTypeExistingUsers,
			Users: roster,
		})
	}

	h.broadcast(client, entry, models.SignalMessage{
		Type:     models.SignalTypeUserJoined,
		UserID:   entry.UserID,
		UserName: entry.UserName,
	}, false)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Relay) readPump(client *wsClient) {
	defer func() {
		removed := h.registry.Remove(client)
		client.Close()

		if removed != nil {
			h.presenceRemove(removed.SessionID, removed.UserID)

			// Notify the remainder of the session
			for _, member := range h.registry.Members(removed.SessionID, client) {
				h.sendTo(member.Conn, models.SignalMessage{
					Type:     models.SignalTypeUserLeft,
					UserID:   removed.UserID,
					UserName: removed.UserName,
				})
			}
			log.Printf("User %s (%s) left session %s", removed.UserName, removed.UserID, removed.SessionID)
		}
	}()

	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var msg models.SignalMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// One bad message never tears down the session
			log.Printf("Failed to parse message: %v", err)
			h.send(client, models.SignalMessage{
				Type:    models.SignalTypeMessageAck,
				Message: "Message received but not handled",
			})
			continue
		}

		sender, ok := h.registry.Lookup(client)
		if !ok {
			log.Printf("Message from unknown sender, ignoring")
			continue
		}

		if !h.handleMessage(client, sender, msg) {
			return
		}
	}
}

// handleMessage routes one inbound message. Returns false when the
// connection should be torn down (graceful leave).
func (h *Relay) handleMessage(client *wsClient, sender registry.Entry, msg models.SignalMessage) bool {
	switch msg.Type {
	case models.SignalTypeJoin:
		// Identity was established at connect time; re-acknowledge
		h.send(client, models.SignalMessage{
			Type:    models.SignalTypeJoinAck,
			Message: "Join acknowledged",
		})

	case models.SignalTypeLeave:
		return false

	case models.SignalTypeOffer, models.SignalTypeAnswer, models.SignalTypeICECandidate:
		h.forwardSignaling(client, sender, msg)

	case models.SignalTypeMediaStateChange:
		h.broadcast(client, sender, stamp(msg, sender), true)

	case models.SignalTypeDebugStatus:
		h.broadcast(client, sender, stamp(msg, sender), true)

	case models.SignalTypeRequestParticipants:
		roster := h.registry.RosterExcept(sender.SessionID, client)
		log.Printf("Re-sending %d participants to %s", len(roster), sender.UserID)
		h.send(client, models.SignalMessage{
			Type:  models.SignalTypeExistingUsers,
			Users: roster,
		})
		// Re-announce the requester in case peers missed the original join
		h.broadcast(client, sender, models.SignalMessage{
			Type:     models.SignalTypeUserJoined,
			UserID:   sender.UserID,
			UserName: sender.UserName,
		}, false)

	case models.SignalTypeForceJoin:
		if msg.TargetUserID == "" {
			log.Printf("No target user ID for %s", msg.Type)
			break
		}
		h.forwardToTarget(sender, msg.TargetUserID, models.SignalMessage{
			Type:     models.SignalTypeForceJoin,
			UserID:   sender.UserID,
			UserName: sender.UserName,
		})

	case models.SignalTypeRestartConnection:
		if msg.TargetUserID == "" {
			log.Printf("No target user ID for %s", msg.Type)
			break
		}
		h.forwardToTarget(sender, msg.TargetUserID, models.SignalMessage{
			Type:   models.SignalTypeRestartConnection,
			UserID: sender.UserID,
		})

	default:
		log.Printf("Unknown message type: %s", msg.Type)
		h.send(client, models.SignalMessage{
			Type:         models.SignalTypeMessageAck,
			Message:      "Message received but not handled",
			OriginalType: msg.Type,
		})
	}
	return true
}

// forwardSignaling routes an offer/answer/ICE message to its target,
// falling back to a session-wide broadcast when the target is not
// registered. Delivery over strict targeting: a join notification can race
// the first offer, and dropping it would stall negotiation.
func (h *Relay) forwardSignaling(client *wsClient, sender registry.Entry, msg models.SignalMessage) {
	stamped := stamp(msg, sender)

	if msg.TargetUserID == "" {
		h.broadcast(client, sender, stamped, false)
		return
	}

	// Self-targeted messages are silently dropped
	if msg.TargetUserID == sender.UserID {
		log.Printf("Ignoring message sent from %s to self", sender.UserID)
		return
	}

	target, found := h.registry.Find(msg.TargetUserID, sender.SessionID)
	if !found {
		log.Printf("Target user %s not found in session %s, broadcasting to all instead", msg.TargetUserID, sender.SessionID)
		h.broadcast(client, sender, stamped, false)
		return
	}

	h.sendTo(target, stamped)
}

// forwardToTarget delivers a recovery control message to a specific
// participant; unreachable targets are dropped with a log.
func (h *Relay) forwardToTarget(sender registry.Entry, targetUserID string, msg models.SignalMessage) {
	target, found := h.registry.Find(targetUserID, sender.SessionID)
	if !found {
		log.Printf("Target user %s not found for %s", targetUserID, msg.Type)
		return
	}
	h.sendTo(target, msg)
	log.Printf("Forwarded %s from %s to %s", msg.Type, sender.UserID, targetUserID)
}

// broadcast fans a message out to every other member of the sender's
// session. When includeSameUser is false, other connections belonging to the
// sender's own userId (e.g. multiple tabs mid-eviction) are skipped too.
func (h *Relay) broadcast(client *wsClient, sender registry.Entry, msg models.SignalMessage, includeSameUser bool) {
	for _, member := range h.registry.Members(sender.SessionID, client) {
		if !includeSameUser && member.Entry.UserID == sender.UserID {
			continue
		}
		h.sendTo(member.Conn, msg)
	}
}

// stamp annotates a forwarded message with the relay's record of the
// sender's identity, regardless of what the payload claimed.
func stamp(msg models.SignalMessage, sender registry.Entry) models.SignalMessage {
	msg.UserID = sender.UserID
	msg.UserName = sender.UserName
	msg.SessionID = sender.SessionID
	return msg
}

func (h *Relay) send(client *wsClient, msg models.SignalMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}
	select {
	case client.send <- data:
	case <-client.done:
	default:
		log.Printf("Failed to send %s message, buffer full", msg.Type)
	}
}

func (h *Relay) sendTo(conn registry.Conn, msg models.SignalMessage) {
	client, ok := conn.(*wsClient)
	if !ok {
		return
	}
	h.send(client, msg)
}

func (h *Relay) writePump(client *wsClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			client.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// presenceAdd mirrors a join into the session's Redis presence set. Redis
// being down degrades presence, never the relay path.
func (h *Relay) presenceAdd(sessionID, userID string) {
	if h.store == nil {
		return
	}
	client := h.store.Client()
	ctx := h.store.Context()
	if err := client.SAdd(ctx, "session:"+sessionID+":peers", userID).Err(); err != nil {
		log.Printf("Failed to mirror presence for %s: %v", userID, err)
		return
	}
	client.Expire(ctx, "session:"+sessionID+":peers", presenceTTL)
}

func (h *Relay) presenceRemove(sessionID, userID string) {
	if h.store == nil {
		return
	}
	if err := h.store.Client().SRem(h.store.Context(), "session:"+sessionID+":peers", userID).Err(); err != nil {
		log.Printf("Failed to clear presence for %s: %v", userID, err)
	}
}
