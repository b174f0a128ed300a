package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"clubdesk/internal/models"
	"clubdesk/internal/storage"
)

// MaxUploadSize caps payment-proof uploads at 5 MiB.
const MaxUploadSize = 5 << 20

var allowedProofTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// UploadPaymentProofHandler accepts a multipart payment-proof upload,
// sniffs the real content type (the client header is not trusted), stores
// the blob by hash and returns the URL/size/type tuple the application
// form submits later.
func (a *API) UploadPaymentProofHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		httpError(w, &models.ValidationError{Field: "file", Constraint: "must be at most 5MB"})
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httpError(w, &models.ValidationError{Field: "file", Constraint: "is required"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		httpError(w, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	kind, _ := filetype.Match(data)
	if !allowedProofTypes[kind.MIME.Value] {
		httpError(w, &models.ValidationError{Field: "file", Constraint: "only JPG, PNG, PDF are allowed"})
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if err := a.files.Save(bytes.NewReader(data), hash); err != nil {
		httpError(w, fmt.Errorf("failed to store upload: %w", err))
		return
	}

	meta := storage.FileMetadata{
		ID:       uuid.NewString(),
		Hash:     hash,
		MimeType: kind.MIME.Value,
		Size:     int64(len(data)),
		UserID:   p.ID,
	}
	if err := a.storage.UpsertFileMetadata(meta); err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"paymentProof": models.PaymentProof{
			FileURL:       fmt.Sprintf("%s/api/uploads/%s", a.baseURL, meta.ID),
			FileType:      meta.MimeType,
			FileSizeBytes: meta.Size,
		},
	})
}

// GetUploadHandler streams a stored upload. Staff review proofs; the
// uploader may re-fetch their own.
func (a *API) GetUploadHandler(w http.ResponseWriter, r *http.Request, p models.Principal) {
	meta, err := a.storage.GetFileMetadata(r.PathValue("id"))
	if err != nil {
		httpError(w, err)
		return
	}
	if !p.Role.IsStaff() && meta.UserID != p.ID {
		httpError(w, models.ErrForbidden)
		return
	}

	f, err := a.files.Get(meta.Hash)
	if err != nil {
		httpError(w, models.ErrNotFound)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", meta.Size))
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("failed to stream upload %s: %v", meta.ID, err)
	}
}
