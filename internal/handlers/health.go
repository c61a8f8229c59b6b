package handlers

import (
	"net/http"
	"time"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/platform/httpx"
	"github.com/Unit659z/Clover-studio/internal/services"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	health services.HealthService
	now    func() time.Time
}

// NewHealthHandlers builds the probe handlers. A nil service makes readiness mirror liveness.
func NewHealthHandlers(health services.HealthService) *HealthHandlers {
	return &HealthHandlers{health: health, now: time.Now}
}

type healthResponse struct {
	Status      string                       `json:"status"`
	Version     string                       `json:"version,omitempty"`
	Environment string                       `json:"environment,omitempty"`
	Uptime      string                       `json:"uptime,omitempty"`
	Checks      map[string]healthCheckResult `json:"checks,omitempty"`
	GeneratedAt string                       `json:"generatedAt"`
}

type healthCheckResult struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// Healthz reports process liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:      domain.HealthStatusOK,
		GeneratedAt: formatTime(h.now()),
	})
}

// Readyz probes dependencies; any check in error answers 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		h.Healthz(w, r)
		return
	}
	report, err := h.health.Readiness(r.Context())
	if err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:      domain.HealthStatusError,
			GeneratedAt: formatTime(h.now()),
		})
		return
	}

	resp := healthResponse{
		Status:      report.Status,
		Version:     report.Version,
		Environment: report.Environment,
		GeneratedAt: formatTime(report.GeneratedAt),
		Checks:      make(map[string]healthCheckResult, len(report.Checks)),
	}
	if report.Uptime > 0 {
		resp.Uptime = report.Uptime.String()
	}
	for name, check := range report.Checks {
		resp.Checks[name] = healthCheckResult{
			Status:    check.Status,
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		}
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, resp)
}
