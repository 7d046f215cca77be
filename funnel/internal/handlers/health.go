package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/techview-systems/leadpixel-stack/common/httputil"
	"github.com/techview-systems/leadpixel-stack/common/messaging"
)

// Check reports a dependency's readiness. A nil error is healthy.
type Check func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	version string
	checks  map[string]Check
	timeout time.Duration
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, checks: map[string]Check{}, timeout: 2 * time.Second}
}

// Register adds a named readiness check.
func (h *HealthHandler) Register(name string, check Check) {
	h.checks[name] = check
}

// NATSCheck adapts a broker connection to a Check.
func NATSCheck(p messaging.Pinger) Check {
	return func(ctx context.Context) error {
		status := messaging.CheckHealth(ctx, p)
		if !status.Healthy() {
			return errString(status.Error)
		}
		return nil
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": results})
}
