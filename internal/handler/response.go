// ==============================================================================
// HTTP HELPERS - internal/handler/response.go
// ==============================================================================
// Package handler exposes the review engine over JSON/HTTP. Handlers only
// decode, validate and map errors; every decision is taken by the services.
// ==============================================================================

package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"finreview/internal/middleware"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"
	"finreview/pkg/logger"
	"finreview/pkg/validator"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request. Reason carries the
// machine-readable denial code when the engine refused the action.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// base carries what every handler needs.
type base struct {
	validator *validator.Validator
	logger    logger.Logger
	name      string
}

func (h *base) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error":   err.Error(),
			"status":  status,
			"handler": h.name,
		})
	}
}

func (h *base) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message})
}

// parseAndValidateRequest decodes a JSON body into req and runs struct validation.
func (h *base) parseAndValidateRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(req); err != nil {
		if errors.Is(err, io.EOF) {
			h.respondError(w, http.StatusBadRequest, "Request body is required")
			return false
		}
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"error":    err.Error(),
			"handler":  h.name,
			"endpoint": r.URL.Path,
		})
		h.respondError(w, http.StatusBadRequest, "Invalid request body format")
		return false
	}

	if fields := h.validator.ValidateStructured(req); fields != nil {
		h.logger.Warn("Request validation failed", map[string]interface{}{
			"fields":   fields,
			"handler":  h.name,
			"endpoint": r.URL.Path,
		})
		h.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
		return false
	}
	return true
}

// parseOptionalRequest is parseAndValidateRequest for endpoints whose body may be empty.
func (h *base) parseOptionalRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	return h.parseAndValidateRequest(w, r, req)
}

func (h *base) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.logger.Warn("Missing principal in context", map[string]interface{}{
			"handler":  h.name,
			"endpoint": r.URL.Path,
			"ip":       r.RemoteAddr,
		})
		h.respondError(w, http.StatusUnauthorized, "Unauthorized: missing identity")
		return domain.Principal{}, false
	}
	return p, true
}

// handleServiceError maps engine errors onto HTTP statuses and logs server faults.
func (h *base) handleServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Reason: string(errs.ReasonOf(err))}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", map[string]interface{}{
			"operation":  operation,
			"error":      err.Error(),
			"request_id": middleware.RequestIDFromContext(r.Context()),
		})
		resp = ErrorResponse{Error: "Internal server error"}
	}
	h.respondJSON(w, status, resp)
}

// StatusFor returns the HTTP status of an engine error.
func StatusFor(err error) int {
	switch {
	case errs.Is(err, errs.ErrPermissionDenied),
		errs.Is(err, errs.ErrSeparationOfDuties),
		errs.Is(err, errs.ErrOutsideBusinessHours):
		return http.StatusForbidden
	case errs.Is(err, errs.ErrLimitExceeded),
		errs.Is(err, errs.ErrDualAuthorizationRequired),
		errs.Is(err, errs.ErrWorkloadExceeded),
		errs.Is(err, errs.ErrDocumentExpired):
		return http.StatusUnprocessableEntity
	case errs.Is(err, errs.ErrIllegalTransition),
		errs.Is(err, errs.ErrStaleVersion),
		errs.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict
	case errs.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errs.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
