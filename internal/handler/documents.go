package handler

import (
	"net/http"
	"time"

	"finreview/internal/review"
	"finreview/pkg/domain"
	"finreview/pkg/logger"
	"finreview/pkg/validator"

	"github.com/gorilla/mux"
)

type RegisterDocumentRequest struct {
	Type          string     `json:"type" validate:"required,document_type"`
	ApplicationID string     `json:"applicationId"`
	FileRef       string     `json:"fileRef" validate:"required,max=512"`
	ExpiryDate    *time.Time `json:"expiryDate"`
}

type RejectDocumentRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// DocumentHandler serves document uploads, document review and KYC case reads.
type DocumentHandler struct {
	base
	service *review.Service
}

func NewDocumentHandler(service *review.Service, val *validator.Validator, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		base:    base{validator: val, logger: log, name: "documents"},
		service: service,
	}
}

// Register records an uploaded document for the calling owner.
// POST /api/v1/documents
func (h *DocumentHandler) Register(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req RegisterDocumentRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	out, err := h.service.RegisterDocument(r.Context(), p, review.DocumentInput{
		Type:          domain.DocumentType(req.Type),
		ApplicationID: req.ApplicationID,
		FileRef:       req.FileRef,
		ExpiryDate:    req.ExpiryDate,
	})
	if err != nil {
		h.handleServiceError(w, r, err, "RegisterDocument")
		return
	}
	h.respondJSON(w, http.StatusCreated, out)
}

// Verify POST /api/v1/admin/documents/{id}/verify
func (h *DocumentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	out, err := h.service.VerifyDocument(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, r, err, "VerifyDocument")
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

// Reject POST /api/v1/admin/documents/{id}/reject
func (h *DocumentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req RejectDocumentRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}
	out, err := h.service.RejectDocument(r.Context(), p, mux.Vars(r)["id"], validator.Sanitize(req.Reason))
	if err != nil {
		h.handleServiceError(w, r, err, "RejectDocument")
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

// KYCCase GET /api/v1/kyc/{ownerId}
func (h *DocumentHandler) KYCCase(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetKYCCase(r.Context(), p, mux.Vars(r)["ownerId"])
	if err != nil {
		h.handleServiceError(w, r, err, "GetKYCCase")
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}
