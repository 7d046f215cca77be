package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/techview-systems/leadpixel-stack/common/middleware"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/auth"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/handlers"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/ratelimit"
	"github.com/techview-systems/leadpixel-stack/funnel/pkg/tokens"
)

// Options are the router's collaborators. A nil Auth leaves the operator
// API unmounted; a nil Limiter disables rate limiting.
type Options struct {
	Funnel       *handlers.FunnelHandler
	Admin        *handlers.AdminHandler
	Health       *handlers.HealthHandler
	Auth         *auth.Middleware
	Limiter      ratelimit.RateLimiter
	CORS         middleware.CORSConfig
	MaxBodyBytes int64
}

// NewRouter constructs a ServeMux with the funnel and operator API routes
// registered.
func NewRouter(o Options) http.Handler {
	mux := http.NewServeMux()

	limiter := o.Limiter
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	public := ratelimit.Middleware(limiter)
	jsonBody := func(h http.HandlerFunc) http.Handler { return middleware.RequireJSON(h) }

	// Public funnel endpoints
	mux.Handle("GET /api/v1/funnel/{operatorId}", public(http.HandlerFunc(o.Funnel.GetFunnel)))
	mux.Handle("POST /api/v1/funnel/{operatorId}/sessions", public(http.HandlerFunc(o.Funnel.StartSession)))
	mux.Handle("GET /api/v1/funnel/{operatorId}/sessions/{sessionId}", public(http.HandlerFunc(o.Funnel.GetSession)))
	mux.Handle("POST /api/v1/funnel/{operatorId}/sessions/{sessionId}/steps", public(jsonBody(o.Funnel.Advance)))
	mux.Handle("POST /api/v1/funnel/{operatorId}/sessions/{sessionId}/back", public(http.HandlerFunc(o.Funnel.Back)))

	// Operator console endpoints
	if o.Auth != nil && o.Admin != nil {
		op := o.Auth.RequireOperator
		mux.Handle("GET /api/v1/operators/{operatorId}/tracking", op(http.HandlerFunc(o.Admin.GetTracking)))
		mux.Handle("PUT /api/v1/operators/{operatorId}/tracking", op(jsonBody(o.Admin.PutTracking)))
		mux.Handle("DELETE /api/v1/operators/{operatorId}/tracking", op(http.HandlerFunc(o.Admin.DeleteTracking)))
		mux.Handle("GET /api/v1/operators/{operatorId}/leads", op(http.HandlerFunc(o.Admin.ListLeads)))
		mux.Handle("GET /api/v1/operators/{operatorId}/leads.csv", op(http.HandlerFunc(o.Admin.ExportLeads)))
		mux.Handle("PATCH /api/v1/operators/{operatorId}/leads/{leadId}", op(jsonBody(o.Admin.UpdateLeadStatus)))
		mux.Handle("DELETE /api/v1/operators/{operatorId}/leads/{leadId}", op(http.HandlerFunc(o.Admin.DeleteLead)))

		admin := o.Auth.RequireRole(tokens.RoleAdmin)
		mux.Handle("GET /api/v1/admin/dlq", admin(http.HandlerFunc(o.Admin.GetDLQ)))
		mux.Handle("POST /api/v1/admin/dlq/replay", admin(http.HandlerFunc(o.Admin.ReplayDLQ)))
		mux.Handle("DELETE /api/v1/admin/dlq", admin(http.HandlerFunc(o.Admin.PurgeDLQ)))
	}

	// Health endpoints
	if o.Health != nil {
		mux.HandleFunc("GET /healthz", o.Health.Healthz)
		mux.HandleFunc("GET /readyz", o.Health.Readyz)
	}

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = middleware.BodyLimit(o.MaxBodyBytes)(h)
	if len(o.CORS.AllowedOrigins) > 0 {
		h = middleware.CORS(o.CORS)(h)
	}
	h = middleware.Recover(h)
	return middleware.RequestID(h)
}
