package handler

import (
	"net/http"

	"finreview/internal/metrics"
	"finreview/internal/middleware"
	"finreview/pkg/logger"

	"github.com/gorilla/mux"
)

// RouterConfig lists the handlers and middleware of the API. RateLimiter and
// Idempotency are optional; both need Redis.
type RouterConfig struct {
	Applications *ApplicationHandler
	Documents    *DocumentHandler
	Team         *TeamHandler
	Audit        *AuditHandler
	System       *SystemHandler

	Auth           *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	Idempotency    *middleware.IdempotencyMiddleware
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	Logger         logger.Logger
}

// NewRouter builds the full HTTP surface.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Log)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Instrument)
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", cfg.System.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(cfg.Auth.Authenticate)
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Limit)
	}
	if cfg.Idempotency != nil {
		api.Use(cfg.Idempotency.Require)
	}

	api.HandleFunc("/applications", cfg.Applications.Submit).Methods(http.MethodPost)
	api.HandleFunc("/applications", cfg.Applications.List).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}", cfg.Applications.Get).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/resubmit", cfg.Applications.Resubmit).Methods(http.MethodPost)
	api.HandleFunc("/applications/{id}/provide-info", cfg.Applications.ProvideInfo).Methods(http.MethodPost)
	api.HandleFunc("/documents", cfg.Documents.Register).Methods(http.MethodPost)
	api.HandleFunc("/kyc/{ownerId}", cfg.Documents.KYCCase).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)

	admin.HandleFunc("/applications", cfg.Applications.List).Methods(http.MethodGet)
	admin.HandleFunc("/applications/{id}/start-review", cfg.Applications.StartReview).Methods(http.MethodPost)
	admin.HandleFunc("/applications/{id}/request-info", cfg.Applications.RequestInfo).Methods(http.MethodPost)
	admin.HandleFunc("/applications/{id}/endorse", cfg.Applications.Endorse).Methods(http.MethodPost)
	admin.HandleFunc("/applications/{id}/approve", cfg.Applications.Approve).Methods(http.MethodPost)
	admin.HandleFunc("/applications/{id}/reject", cfg.Applications.Reject).Methods(http.MethodPost)
	admin.HandleFunc("/applications/{id}/reassign", cfg.Applications.Reassign).Methods(http.MethodPost)

	admin.HandleFunc("/documents/{id}/verify", cfg.Documents.Verify).Methods(http.MethodPost)
	admin.HandleFunc("/documents/{id}/reject", cfg.Documents.Reject).Methods(http.MethodPost)

	admin.HandleFunc("/team", cfg.Team.Create).Methods(http.MethodPost)
	admin.HandleFunc("/team", cfg.Team.List).Methods(http.MethodGet)
	admin.HandleFunc("/team/{id}", cfg.Team.Get).Methods(http.MethodGet)
	admin.HandleFunc("/team/{id}", cfg.Team.Update).Methods(http.MethodPatch)
	admin.HandleFunc("/team/{id}/deactivate", cfg.Team.Deactivate).Methods(http.MethodPost)

	admin.HandleFunc("/audit/{targetId}", cfg.Audit.ForTarget).Methods(http.MethodGet)

	return r
}
