package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"clubdesk/internal/api"
)

// OwnerServer hosts the owner console on a loopback address, kept off the
// public API listener entirely.
type OwnerServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewOwnerServer(handler *api.OwnerHandler, addr string) *OwnerServer {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /owner/admins", handler.ListAdminsHandler)
	mux.HandleFunc("POST /owner/admins", handler.PromoteAdminHandler)
	mux.HandleFunc("PATCH /owner/admins/{id}/active", handler.SetAdminActiveHandler)
	mux.HandleFunc("GET /owner/audit-logs", handler.AuditLogsHandler)

	if addr == "" {
		addr = "localhost:4001"
	}

	return &OwnerServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *OwnerServer) Start() error {
	log.Printf("Owner console started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *OwnerServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
