package handler

import (
	"net/http"

	"finreview/internal/adminteam"
	"finreview/pkg/domain"
	"finreview/pkg/logger"
	"finreview/pkg/validator"

	"github.com/gorilla/mux"
)

type CreateAdminRequest struct {
	ID            string                `json:"id"`
	Name          string                `json:"name" validate:"required,max=200"`
	Email         string                `json:"email" validate:"required,email"`
	Role          string                `json:"role" validate:"required,admin_role"`
	MaxWorkload   int                   `json:"maxWorkload" validate:"min=0,max=1000"`
	ApprovalLimit *domain.ApprovalLimit `json:"approvalLimit"`
	Permissions   map[string]bool       `json:"permissions"`
}

// UpdateAdminRequest is a partial update; omitted fields are left unchanged.
type UpdateAdminRequest struct {
	Role          *string               `json:"role" validate:"omitempty,admin_role"`
	ApprovalLimit *domain.ApprovalLimit `json:"approvalLimit"`
	Permissions   map[string]bool       `json:"permissions"`
	MaxWorkload   *int                  `json:"maxWorkload" validate:"omitempty,min=0,max=1000"`
}

// TeamHandler manages admin profiles.
type TeamHandler struct {
	base
	service *adminteam.Service
}

func NewTeamHandler(service *adminteam.Service, val *validator.Validator, log logger.Logger) *TeamHandler {
	return &TeamHandler{
		base:    base{validator: val, logger: log, name: "team"},
		service: service,
	}
}

// Create POST /api/v1/admin/team
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreateAdminRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	profile, err := h.service.Create(r.Context(), p, adminteam.CreateInput{
		ID:            req.ID,
		Name:          validator.Sanitize(req.Name),
		Email:         req.Email,
		Role:          domain.Role(req.Role),
		MaxWorkload:   req.MaxWorkload,
		ApprovalLimit: req.ApprovalLimit,
		Permissions:   req.Permissions,
	})
	if err != nil {
		h.handleServiceError(w, r, err, "CreateAdmin")
		return
	}
	h.respondJSON(w, http.StatusCreated, profile)
}

// Update PATCH /api/v1/admin/team/{id}
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req UpdateAdminRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	in := adminteam.UpdateInput{
		ApprovalLimit: req.ApprovalLimit,
		Permissions:   req.Permissions,
		MaxWorkload:   req.MaxWorkload,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		in.Role = &role
	}

	profile, err := h.service.Update(r.Context(), p, mux.Vars(r)["id"], in)
	if err != nil {
		h.handleServiceError(w, r, err, "UpdateAdmin")
		return
	}
	h.respondJSON(w, http.StatusOK, profile)
}

// Deactivate POST /api/v1/admin/team/{id}/deactivate
func (h *TeamHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Deactivate(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, r, err, "DeactivateAdmin")
		return
	}
	h.respondJSON(w, http.StatusOK, profile)
}

// List GET /api/v1/admin/team
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	profiles, err := h.service.List(r.Context(), p)
	if err != nil {
		h.handleServiceError(w, r, err, "ListAdmins")
		return
	}
	if profiles == nil {
		profiles = []*domain.AdminProfile{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"admins": profiles,
		"count":  len(profiles),
	})
}

// Get GET /api/v1/admin/team/{id}
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Get(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, r, err, "GetAdmin")
		return
	}
	h.respondJSON(w, http.StatusOK, profile)
}
