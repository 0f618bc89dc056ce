package handler

import (
	"net/http"

	"finreview/internal/review"
	"finreview/pkg/domain"
	"finreview/pkg/logger"
	"finreview/pkg/validator"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// ==============================================================================
// REQUESTS
// ==============================================================================

type SubmitApplicationRequest struct {
	RequestedAmount   decimal.Decimal `json:"requestedAmount" validate:"required,positive_amount"`
	Currency          string          `json:"currency" validate:"omitempty,len=3"`
	Purpose           string          `json:"purpose" validate:"required,max=500"`
	ContactEmail      string          `json:"contactEmail" validate:"omitempty,email"`
	DocumentsUploaded bool            `json:"documentsUploaded"`
	Status            string          `json:"status" validate:"omitempty,oneof=new pending"`
}

type ProvideInfoRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

type RequestInfoRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

type ApproveRequest struct {
	Justification string `json:"justification" validate:"max=1000"`
}

type RejectRequest struct {
	Reason        string `json:"reason" validate:"required,max=2000"`
	AllowResubmit bool   `json:"allowResubmit"`
	Justification string `json:"justification" validate:"max=1000"`
}

type ReassignRequest struct {
	AssigneeID string `json:"assigneeId" validate:"required"`
}

// ==============================================================================
// APPLICATION HANDLER
// ==============================================================================

// ApplicationHandler serves owner and admin actions on financing applications.
type ApplicationHandler struct {
	base
	service *review.Service
}

func NewApplicationHandler(service *review.Service, val *validator.Validator, log logger.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		base:    base{validator: val, logger: log, name: "applications"},
		service: service,
	}
}

// Submit creates an application for the calling owner.
// POST /api/v1/applications
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req SubmitApplicationRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	out, err := h.service.SubmitApplication(r.Context(), p, review.SubmitInput{
		RequestedAmount:   req.RequestedAmount,
		Currency:          req.Currency,
		Purpose:           validator.Sanitize(req.Purpose),
		ContactEmail:      req.ContactEmail,
		DocumentsUploaded: req.DocumentsUploaded,
		Status:            domain.ApplicationStatus(req.Status),
	})
	if err != nil {
		h.handleServiceError(w, r, err, "SubmitApplication")
		return
	}
	h.respondJSON(w, http.StatusCreated, out)
}

// Get returns one application.
// GET /api/v1/applications/{id}
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	app, err := h.service.GetApplication(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, r, err, "GetApplication")
		return
	}
	h.respondJSON(w, http.StatusOK, app)
}

// List returns the caller's own applications, or for admins the queue of ?status=.
// GET /api/v1/applications, GET /api/v1/admin/applications
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	status := domain.ApplicationStatus(r.URL.Query().Get("status"))
	apps, err := h.service.ListApplications(r.Context(), p, status)
	if err != nil {
		h.handleServiceError(w, r, err, "ListApplications")
		return
	}
	if apps == nil {
		apps = []*domain.Application{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"applications": apps,
		"count":        len(apps),
	})
}

// Resubmit reopens a rejected application.
// POST /api/v1/applications/{id}/resubmit
func (h *ApplicationHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Resubmit", func(p domain.Principal, id string) (*review.Outcome, error) {
		return h.service.Resubmit(r.Context(), p, id)
	})
}

// ProvideInfo answers a request for more information.
// POST /api/v1/applications/{id}/provide-info
func (h *ApplicationHandler) ProvideInfo(w http.ResponseWriter, r *http.Request) {
	var req ProvideInfoRequest
	if !h.parseOptionalRequest(w, r, &req) {
		return
	}
	h.act(w, r, "ProvideInfo", func(p domain.Principal, id string) (*review.Outcome, error) {
		return h.service.ProvideInfo(r.Context(), p, id, validator.Sanitize(req.Note))
	})
}

// StartReview POST /api/v1/admin/applications/{id}/start-review
func (h *ApplicationHandler) StartReview(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "StartReview", func(p domain.Principal, id string) (*review.Outcome, error) {
		return h.service.StartReview(r.Context(), p, id)
	})
}

// RequestInfo POST /api/v1/admin/applications/{id}/request-info
func (h *ApplicationHandler) RequestInfo(w http.ResponseWriter, r *http.Request) {
	var req RequestInfoRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}
	h.act(w, r, "RequestInfo", func(p domain.Principal, id string) (*review.Outcome, error) {
		return h.service.RequestInfo(r.Context(), p, id, validator.Sanitize(req.Message))
	})
}

// Endorse POST /api/v1/admin/applications/{id}/endorse
func (h *ApplicationHandler) Endorse(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Endorse", func(p domain.Principal, id string) (*review.Outcome, error) {
		return h.service.Endorse(r.Context(), p, id)
	})
}

// Approve POST /api/v1/admin/applications/{id}/approve
func (h *ApplicationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if !h.parseOptionalRequest(w, r, &req) {
		return
	}
	h.act(w, r, "Approve", func(p domain.Principal, id string) (*review.Outcome, error) {
		return h.service.Approve(r.Context(), p, id, validator.Sanitize(req.Justification))
	})
}

// Reject POST /api/v1/admin/applications/{id}/reject
func (h *ApplicationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}
	h.act(w, r, "Reject", func(p domain.Principal, id string) (*review.Outcome, error) {
		return h.service.Reject(r.Context(), p, id, review.RejectInput{
			Reason:        validator.Sanitize(req.Reason),
			AllowResubmit: req.AllowResubmit,
			Justification: validator.Sanitize(req.Justification),
		})
	})
}

// Reassign POST /api/v1/admin/applications/{id}/reassign
func (h *ApplicationHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	var req ReassignRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}
	h.act(w, r, "Reassign", func(p domain.Principal, id string) (*review.Outcome, error) {
		return h.service.Reassign(r.Context(), p, id, req.AssigneeID)
	})
}

func (h *ApplicationHandler) act(w http.ResponseWriter, r *http.Request, operation string, run func(domain.Principal, string) (*review.Outcome, error)) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	out, err := run(p, mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, r, err, operation)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}
