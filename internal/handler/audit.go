package handler

import (
	"net/http"
	"strconv"

	"finreview/internal/review"
	"finreview/pkg/domain"
	"finreview/pkg/logger"
	"finreview/pkg/validator"

	"github.com/gorilla/mux"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditHandler serves the audit trail of one target.
type AuditHandler struct {
	base
	service *review.Service
}

func NewAuditHandler(service *review.Service, val *validator.Validator, log logger.Logger) *AuditHandler {
	return &AuditHandler{
		base:    base{validator: val, logger: log, name: "audit"},
		service: service,
	}
}

// ForTarget GET /api/v1/admin/audit/{targetId}?limit=
func (h *AuditHandler) ForTarget(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxAuditLimit {
			n = maxAuditLimit
		}
		limit = n
	}

	entries, err := h.service.AuditFor(r.Context(), p, mux.Vars(r)["targetId"], limit)
	if err != nil {
		h.handleServiceError(w, r, err, "AuditFor")
		return
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   limit,
	})
}
