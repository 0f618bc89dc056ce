package handler

import (
	"context"
	"net/http"
	"time"

	"finreview/pkg/logger"
)

// Pinger is a dependency the health check probes. *sqlx.DB satisfies it; other
// clients are wrapped with PingFunc.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type ComponentStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"` // operational, degraded, outage
	LatencyMs int64  `json:"latency_ms"`
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Service    string            `json:"service"`
	Uptime     string            `json:"uptime"`
	Components []ComponentStatus `json:"components"`
}

// SystemHandler reports liveness and the state of the backing stores.
type SystemHandler struct {
	base
	components map[string]Pinger
	order      []string
	startTime  time.Time
	service    string
}

func NewSystemHandler(service string, log logger.Logger) *SystemHandler {
	return &SystemHandler{
		base:       base{logger: log, name: "system"},
		components: make(map[string]Pinger),
		startTime:  time.Now(),
		service:    service,
	}
}

// Register adds a component to the health report.
func (h *SystemHandler) Register(name string, p Pinger) *SystemHandler {
	if _, exists := h.components[name]; !exists {
		h.order = append(h.order, name)
	}
	h.components[name] = p
	return h
}

// Health GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "healthy",
		Service:    h.service,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Components: []ComponentStatus{},
	}

	for _, name := range h.order {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		start := time.Now()
		err := h.components[name].PingContext(ctx)
		cancel()

		c := ComponentStatus{Name: name, Status: "operational", LatencyMs: time.Since(start).Milliseconds()}
		if err != nil {
			c.Status = "outage"
			resp.Status = "unhealthy"
			h.logger.Error("Health check failed", map[string]interface{}{
				"component": name,
				"error":     err.Error(),
			})
		} else if c.LatencyMs > 200 {
			c.Status = "degraded"
		}
		resp.Components = append(resp.Components, c)
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	h.respondJSON(w, status, resp)
}
