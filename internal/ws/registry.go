package ws

import (
	"sync"

	"github.com/google/uuid"

	"clubdesk/internal/chat"
	"clubdesk/internal/models"
)

const sessionBuffer = 64

// Session is one connected socket. A principal with several browser tabs
// holds several sessions, each delivered to independently.
type Session struct {
	ID        string
	Principal models.Principal
	events    chan models.ServerEvent
}

// Events is the stream of room broadcasts addressed to this session.
func (s *Session) Events() <-chan models.ServerEvent {
	return s.events
}

// Registry tracks which rooms each live session observes and offers
// room-wide fan-out. Memberships exist only for a connection's lifetime;
// nothing here is persisted.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	rooms        map[string]map[string]*Session
	sessionRooms map[string]map[string]struct{}
	closed       bool
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		rooms:        make(map[string]map[string]*Session),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Register creates a session for an authenticated principal and auto-joins
// its default rooms: staff sessions join the shared staff room, member
// sessions join their own conversation room. Returns nil after Shutdown.
func (r *Registry) Register(p models.Principal, conversationID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	s := &Session{
		ID:        uuid.NewString(),
		Principal: p,
		events:    make(chan models.ServerEvent, sessionBuffer),
	}
	r.sessions[s.ID] = s
	r.sessionRooms[s.ID] = make(map[string]struct{})

	if p.Role.IsStaff() {
		r.joinLocked(s, chat.StaffRoom)
	} else if conversationID != "" {
		r.joinLocked(s, chat.ConversationRoom(conversationID))
	}

	return s
}

// Deregister removes the session from every room and closes its event
// stream. In-flight store operations are unaffected.
func (r *Registry) Deregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deregisterLocked(sessionID)
}

// JoinConversation subscribes a staff session to a conversation room on
// demand. Requests from non-staff sessions are silently ignored: no error
// is surfaced and no state changes, so room topology is not leaked.
func (r *Registry) JoinConversation(sessionID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || !s.Principal.Role.IsStaff() {
		return
	}
	r.joinLocked(s, chat.ConversationRoom(conversationID))
}

// ToRoom delivers the event to every session currently in the room.
// Sessions with a full buffer are skipped; a reconnecting client re-fetches
// state from the store instead of relying on redelivery.
func (r *Registry) ToRoom(room string, event models.ServerEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.rooms[room] {
		select {
		case s.events <- event:
		default:
		}
	}
}

// RoomSize reports how many sessions currently observe the room.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Shutdown closes every session stream and refuses new registrations.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.sessions {
		r.deregisterLocked(id)
	}
	r.closed = true
}

func (r *Registry) joinLocked(s *Session, room string) {
	members := r.rooms[room]
	if members == nil {
		members = make(map[string]*Session)
		r.rooms[room] = members
	}
	members[s.ID] = s
	r.sessionRooms[s.ID][room] = struct{}{}
}

func (r *Registry) deregisterLocked(sessionID string) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	for room := range r.sessionRooms[sessionID] {
		delete(r.rooms[room], sessionID)
		if len(r.rooms[room]) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.sessionRooms, sessionID)
	delete(r.sessions, sessionID)
	close(s.events)
}
