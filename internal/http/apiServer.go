package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"clubdesk/internal/api"
	"clubdesk/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAPIServer(handlers *api.API, wsServer *ws.Server, addr string) *APIServer {
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /api/auth/signup", handlers.SignupHandler)
	mux.HandleFunc("POST /api/auth/login", handlers.LoginHandler)

	// Member chat
	mux.HandleFunc("GET /api/chat/my-room", handlers.RequireAuth(handlers.MyRoomHandler))
	mux.HandleFunc("POST /api/chat/my-room/messages", handlers.RequireAuth(handlers.PostMyMessageHandler))

	// Enrollment
	mux.HandleFunc("POST /api/applications", handlers.RequireAuth(handlers.CreateApplicationHandler))
	mux.HandleFunc("GET /api/applications/me", handlers.RequireAuth(handlers.MyApplicationsHandler))
	mux.HandleFunc("POST /api/uploads/payment-proof", handlers.RequireAuth(handlers.UploadPaymentProofHandler))
	mux.HandleFunc("GET /api/uploads/{id}", handlers.RequireAuth(handlers.GetUploadHandler))

	// Staff dashboard
	mux.HandleFunc("GET /api/admin/chats", handlers.RequireStaff(handlers.StaffConversationsHandler))
	mux.HandleFunc("GET /api/admin/chats/{id}/messages", handlers.RequireStaff(handlers.StaffConversationMessagesHandler))
	mux.HandleFunc("POST /api/admin/chats/{id}/messages", handlers.RequireStaff(handlers.PostStaffMessageHandler))
	mux.HandleFunc("GET /api/admin/applications", handlers.RequireStaff(handlers.ApplicationsHandler))
	mux.HandleFunc("GET /api/admin/applications/{id}", handlers.RequireStaff(handlers.ApplicationHandler))
	mux.HandleFunc("PATCH /api/admin/applications/{id}/status", handlers.RequireStaff(handlers.ReviewApplicationHandler))
	mux.HandleFunc("GET /api/admin/members", handlers.RequireStaff(handlers.MembersHandler))

	// WebSocket endpoint
	mux.HandleFunc("/api/chat/ws", wsServer.HandleConnections)

	if addr == "" {
		addr = ":4000"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("API server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
