package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillsync/session-relay/internal/models"
)

// Conn is the transport handle the registry tracks. The registry closes it
// when an entry is evicted by a reconnecting participant. Implementations
// must be comparable (pointers).
type Conn interface {
	Close() error
}

// Entry is one live participant registration.
type Entry struct {
	ConnectionID string
	UserID       string
	UserName     string
	SessionID    string
	ConnectedAt  time.Time
}

// Member pairs a connection with its registration, for fan-out.
type Member struct {
	Conn  Conn
	Entry Entry
}

// Registry maps live connections to participant identity and sessions to
// their participant sets. It is owned by the relay service and shared by the
// per-connection goroutines; one mutex gives the handlers the exclusive
// access the registry invariants assume.
type Registry struct {
	mu          sync.Mutex
	connections map[Conn]*Entry
	sessions    map[string]map[Conn]struct{}
}

func New() *Registry {
	return &Registry{
		connections: make(map[Conn]*Entry),
		sessions:    make(map[string]map[Conn]struct{}),
	}
}

// Admit registers a new connection and adds it to its session. If an active
// entry already exists for the same (userId, sessionId), say a refreshed tab
// or a reconnect, that entry is evicted first and its transport closed, so the
// roster never carries duplicate identities. Returns the new entry, the
// roster as it stood before admission (for existing-users delivery), and the
// evicted entry if there was one.
func (r *Registry) Admit(conn Conn, sessionID, userID, userName string) (Entry, []models.Participant, *Entry) {
	r.mu.Lock()

	var evicted *Entry
	for existing, entry := range r.connections {
		if entry.UserID == userID && entry.SessionID == sessionID {
			if set, ok := r.sessions[entry.SessionID]; ok {
				delete(set, existing)
				if len(set) == 0 {
					delete(r.sessions, entry.SessionID)
				}
			}
			delete(r.connections, existing)
			evicted = entry
			// Close outside the lock; the stale peer may be mid-write.
			defer existing.Close()
			break
		}
	}

	roster := r.rosterLocked(sessionID)

	entry := &Entry{
		ConnectionID: uuid.New().String(),
		UserID:       userID,
		UserName:     userName,
		SessionID:    sessionID,
		ConnectedAt:  time.Now(),
	}
	r.connections[conn] = entry

	set, ok := r.sessions[sessionID]
	if !ok {
		set = make(map[Conn]struct{})
		r.sessions[sessionID] = set
	}
	set[conn] = struct{}{}

	admitted := *entry
	r.mu.Unlock()
	return admitted, roster, evicted
}

// Remove deregisters a connection. Returns the removed entry, or nil if the
// connection was never admitted (repeat close events are no-ops). An emptied
// session is deleted so a later join with the same id starts fresh.
func (r *Registry) Remove(conn Conn) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.connections[conn]
	if !ok {
		return nil
	}
	delete(r.connections, conn)

	if set, ok := r.sessions[entry.SessionID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.sessions, entry.SessionID)
		}
	}

	removed := *entry
	return &removed
}

// Find returns the connection for a participant within a session.
func (r *Registry) Find(userID, sessionID string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conn, entry := range r.connections {
		if entry.UserID == userID && entry.SessionID == sessionID {
			return conn, true
		}
	}
	return nil, false
}

// Lookup returns the registration for a connection.
func (r *Registry) Lookup(conn Conn) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.connections[conn]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Roster returns the identities of everyone registered in a session.
func (r *Registry) Roster(sessionID string) []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked(sessionID)
}

// RosterExcept returns the session roster without the given connection.
func (r *Registry) RosterExcept(sessionID string, except Conn) []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	var roster []models.Participant
	for conn := range r.sessions[sessionID] {
		if conn == except {
			continue
		}
		if entry, ok := r.connections[conn]; ok {
			roster = append(roster, models.Participant{UserID: entry.UserID, UserName: entry.UserName})
		}
	}
	return roster
}

// Members returns every connection in a session except the given one,
// paired with its registration, for broadcast fan-out.
func (r *Registry) Members(sessionID string, except Conn) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	var members []Member
	for conn := range r.sessions[sessionID] {
		if conn == except {
			continue
		}
		if entry, ok := r.connections[conn]; ok {
			members = append(members, Member{Conn: conn, Entry: *entry})
		}
	}
	return members
}

// Census returns the participant count per active session.
func (r *Registry) Census() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	census := make(map[string]int, len(r.sessions))
	for sessionID, set := range r.sessions {
		census[sessionID] = len(set)
	}
	return census
}

func (r *Registry) rosterLocked(sessionID string) []models.Participant {
	var roster []models.Participant
	for conn := range r.sessions[sessionID] {
		if entry, ok := r.connections[conn]; ok {
			roster = append(roster, models.Participant{UserID: entry.UserID, UserName: entry.UserName})
		}
	}
	return roster
}
