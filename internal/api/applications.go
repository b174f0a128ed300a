package api

import (
	"encoding/json"
	"net/http"
	"time"

	"clubdesk/internal/models"
)

// MinTransferAmount is the smallest accepted membership fee.
const MinTransferAmount = 200000

type createApplicationRequest struct {
	SenderBankAccountName string              `json:"senderBankAccountName"`
	BankName              string              `json:"bankName"`
	TransferDate          string              `json:"transferDate"`
	Amount                int64               `json:"amount"`
	PaymentProof          models.PaymentProof `json:"paymentProof"`
}

// CreateApplicationHandler submits a bank-transfer enrollment application.
// One pending application per user; a repeat submit conflicts.
func (a *API) CreateApplicationHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateApplication(req); err != nil {
		httpError(w, err)
		return
	}
	transferDate, err := time.Parse(time.RFC3339, req.TransferDate)
	if err != nil {
		httpError(w, &models.ValidationError{Field: "transferDate", Constraint: "must be an RFC 3339 timestamp"})
		return
	}

	app, err := a.storage.CreateApplication(models.Application{
		UserID:                p.ID,
		SenderBankAccountName: req.SenderBankAccountName,
		BankName:              req.BankName,
		TransferDate:          transferDate.UnixMilli(),
		Amount:                req.Amount,
		PaymentProof:          &req.PaymentProof,
	})
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"application": app})
}

func (a *API) MyApplicationsHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	apps, err := a.storage.ListApplications(p.ID)
	if err != nil {
		httpError(w, err)
		return
	}
	if apps == nil {
		apps = []models.Application{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func validateApplication(req createApplicationRequest) error {
	if n := len(req.SenderBankAccountName); n < 2 || n > 120 {
		return &models.ValidationError{Field: "senderBankAccountName", Constraint: "must be 2-120 characters"}
	}
	if n := len(req.BankName); n < 2 || n > 80 {
		return &models.ValidationError{Field: "bankName", Constraint: "must be 2-80 characters"}
	}
	if req.Amount < MinTransferAmount {
		return &models.ValidationError{Field: "amount", Constraint: "must be at least 200000"}
	}
	if req.PaymentProof.FileURL == "" {
		return &models.ValidationError{Field: "paymentProof", Constraint: "is required"}
	}
	if req.PaymentProof.FileSizeBytes <= 0 || req.PaymentProof.FileSizeBytes > MaxUploadSize {
		return &models.ValidationError{Field: "paymentProof", Constraint: "file size must be positive and at most 5MB"}
	}
	if !allowedProofTypes[req.PaymentProof.FileType] {
		return &models.ValidationError{Field: "paymentProof", Constraint: "only JPG, PNG, PDF are allowed"}
	}
	return nil
}
