package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"clubdesk/internal/auth"
	"clubdesk/internal/chat"
	"clubdesk/internal/filestore"
	"clubdesk/internal/models"
	"clubdesk/internal/storage"
)

type API struct {
	auth    *auth.Service
	chat    *chat.Service
	storage *storage.BboltStorage
	files   filestore.FileStore
	baseURL string
}

func New(authService *auth.Service, chatService *chat.Service, store *storage.BboltStorage, files filestore.FileStore, baseURL string) *API {
	return &API{
		auth:    authService,
		chat:    chatService,
		storage: store,
		files:   files,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

type authedHandler func(w http.ResponseWriter, r *http.Request, p models.Principal)

// RequireAuth resolves the bearer credential to a principal before calling
// the wrapped handler. Deactivated accounts fail here even with a valid
// token.
func (a *API) RequireAuth(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := a.auth.Authenticate(getToken(r))
		if err != nil {
			httpError(w, models.ErrUnauthorized)
			return
		}
		h(w, r, p)
	}
}

// RequireStaff additionally rejects non-staff principals. Unlike the
// socket room-join path, the HTTP path surfaces the Forbidden explicitly.
func (a *API) RequireStaff(h authedHandler) http.HandlerFunc {
	return a.RequireAuth(func(w http.ResponseWriter, r *http.Request, p models.Principal) {
		if !p.Role.IsStaff() {
			httpError(w, models.ErrForbidden)
			return
		}
		h(w, r, p)
	})
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := a.auth.Signup(req.Username, req.Email, req.Password)
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := a.auth.Login(req.Email, req.Password)
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

// MyRoomHandler returns the caller's conversation with full history.
func (a *API) MyRoomHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	conv, messages, err := a.chat.GetOwnConversation(p)
	if err != nil {
		httpError(w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     messages,
	})
}

type messageRequest struct {
	Body string `json:"body"`
}

// PostMyMessageHandler is the member send path. Staff reply through the
// admin endpoint; misuse of this one is a Forbidden, not a silent drop.
func (a *API) PostMyMessageHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := a.chat.PostMessage(p, req.Body)
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"conversationId": msg.ConversationID,
		"message":        msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func httpError(w http.ResponseWriter, err error) {
	var validation *models.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": validation.Error()})
	case errors.Is(err, models.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	case errors.Is(err, models.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
	case errors.Is(err, models.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"message": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal error"})
	}
}

func getToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
