package api

import (
	"encoding/json"
	"net/http"

	"clubdesk/internal/models"
)

// StaffConversationsHandler returns the dashboard listing: every
// conversation with its newest message and unread count.
func (a *API) StaffConversationsHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	summaries, err := a.chat.ListStaffConversations()
	if err != nil {
		httpError(w, err)
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

// StaffConversationMessagesHandler returns one conversation's history and
// marks member messages read as a side effect of the staff caller.
func (a *API) StaffConversationMessagesHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	conv, messages, err := a.chat.GetConversationMessages(r.PathValue("id"), p)
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

func (a *API) PostStaffMessageHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := a.chat.PostStaffMessage(r.PathValue("id"), p, req.Body)
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

func (a *API) ApplicationsHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	apps, err := a.storage.ListApplications("")
	if err != nil {
		httpError(w, err)
		return
	}
	if apps == nil {
		apps = []models.Application{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (a *API) ApplicationHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	app, err := a.storage.GetApplication(r.PathValue("id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"application": app})
}

type reviewRequest struct {
	Status    models.ApplicationStatus `json:"status"`
	AdminNote string                   `json:"adminNote"`
}

// ReviewApplicationHandler records the staff decision; verification
// activates the applicant's membership.
func (a *API) ReviewApplicationHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status != models.ApplicationVerified && req.Status != models.ApplicationRejected {
		httpError(w, &models.ValidationError{Field: "status", Constraint: "must be VERIFIED or REJECTED"})
		return
	}
	if len(req.AdminNote) > 500 {
		httpError(w, &models.ValidationError{Field: "adminNote", Constraint: "must be at most 500 characters"})
		return
	}

	app, err := a.storage.ReviewApplication(r.PathValue("id"), req.Status, req.AdminNote, p.ID)
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"application": app})
}

// MembersHandler lists members, filtered by membership status
// (defaults to ACTIVE).
func (a *API) MembersHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	status := models.MembershipStatus(r.URL.Query().Get("status"))
	switch status {
	case models.MembershipNone, models.MembershipPending, models.MembershipActive, models.MembershipRejected:
	default:
		status = models.MembershipActive
	}

	members, err := a.storage.ListUsers(status)
	if err != nil {
		httpError(w, err)
		return
	}
	if members == nil {
		members = []models.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}
