package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"clubdesk/internal/models"
	"clubdesk/internal/storage"
)

// OwnerHandler serves the owner console on the loopback ops server:
// staff management and the audit trail. The ops listener binds to
// localhost only, mirroring how the public API never exposes these
// routes.
type OwnerHandler struct {
	storage *storage.BboltStorage
}

func NewOwnerHandler(store *storage.BboltStorage) *OwnerHandler {
	return &OwnerHandler{storage: store}
}

func (h *OwnerHandler) ListAdminsHandler(w http.ResponseWriter, r *http.Request) {
	staff, err := h.storage.ListStaff()
	if err != nil {
		httpError(w, err)
		return
	}
	if staff == nil {
		staff = []models.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"admins": staff})
}

type promoteRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Actor  string `json:"actor"`
}

// PromoteAdminHandler raises an existing user to staff.
func (h *OwnerHandler) PromoteAdminHandler(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" && req.Email == "" {
		httpError(w, &models.ValidationError{Field: "userId", Constraint: "provide userId or email"})
		return
	}

	userID := req.UserID
	if userID == "" {
		user, err := h.storage.GetUserByEmail(req.Email)
		if err != nil {
			httpError(w, err)
			return
		}
		userID = user.ID
	}

	admin, err := h.storage.PromoteToStaff(userID, req.Actor)
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"admin": admin})
}

type setActiveRequest struct {
	Active bool   `json:"active"`
	Actor  string `json:"actor"`
}

// SetAdminActiveHandler toggles a staff account. Deactivation takes effect
// on the next authentication; already open sockets are not dropped.
func (h *OwnerHandler) SetAdminActiveHandler(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	admin, err := h.storage.SetUserActive(r.PathValue("id"), req.Active, req.Actor)
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"admin": admin})
}

func (h *OwnerHandler) AuditLogsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = min(max(n, 1), 500)
		}
	}

	logs, err := h.storage.ListAuditEntries(limit)
	if err != nil {
		httpError(w, err)
		return
	}
	if logs == nil {
		logs = []models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
