package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"clubdesk/internal/auth"
	"clubdesk/internal/chat"
	"clubdesk/internal/models"
)

// Server authenticates socket handshakes and hands accepted connections to
// the registry. Authentication failure is terminal for the attempt: the
// request is rejected before any room membership exists.
type Server struct {
	auth     *auth.Service
	chat     *chat.Service
	registry *Registry
	upgrader *websocket.Upgrader
}

func NewServer(authService *auth.Service, chatService *chat.Service, registry *Registry) *Server {
	return &Server{
		auth:     authService,
		chat:     chatService,
		registry: registry,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is handled at the API layer
			},
		},
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	principal, err := s.auth.Authenticate(bearerToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Members observe exactly their own conversation; it is created here
	// on first connect if the chat page is the member's first interaction.
	var conversationID string
	if principal.Role == models.RoleMember {
		conv, err := s.chat.ConversationFor(principal.ID)
		if err != nil {
			log.Printf("error resolving conversation for %s: %v", principal.ID, err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		conversationID = conv.ID
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error upgrading to websocket: %v", err)
		return
	}

	session := s.registry.Register(principal, conversationID)
	if session == nil {
		_ = ws.Close()
		return
	}

	conn := NewConnection(s.registry, ws, session)
	if err := conn.Handle(r.Context()); err != nil {
		log.Printf("connection error for %s: %v", principal.ID, err)
	}
}

// bearerToken extracts the credential from the Authorization header, with
// a query parameter fallback for browser websocket clients that cannot
// set headers on the handshake.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
