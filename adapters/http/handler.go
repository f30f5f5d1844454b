// Package http provides the externally reachable JSON API: the usage
// snapshot, the gated consumption endpoint, and the billing session
// endpoints. This is the only layer that translates error kinds into
// transport status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/tollgate/adapters/auth"
	"github.com/artpar/tollgate/adapters/metrics"
	"github.com/artpar/tollgate/app"
	"github.com/artpar/tollgate/domain/tier"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/artpar/tollgate/docs" // swagger spec
)

// usageCacheMaxAge bounds staleness of the usage snapshot at the
// transport layer; the core itself re-reads the store on every call.
const usageCacheMaxAge = 30 * time.Second

// Handler provides the public API endpoints.
type Handler struct {
	entitlements *app.EntitlementService
	billing      *app.BillingService
	webhooks     *app.WebhookService
	tokens       *auth.TokenService
	metrics      *metrics.Collector
	registry     *prometheus.Registry
	logger       zerolog.Logger
	version      string
}

// Deps contains dependencies for the API handler.
type Deps struct {
	Entitlements *app.EntitlementService
	Billing      *app.BillingService
	Webhooks     *app.WebhookService
	Tokens       *auth.TokenService
	Metrics      *metrics.Collector
	Registry     *prometheus.Registry
	Logger       zerolog.Logger
	Version      string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		entitlements: deps.Entitlements,
		billing:      deps.Billing,
		webhooks:     deps.Webhooks,
		tokens:       deps.Tokens,
		metrics:      deps.Metrics,
		registry:     deps.Registry,
		logger:       deps.Logger,
		version:      deps.Version,
	}
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestMetrics)

	r.Get("/healthz", h.Health)
	r.Get("/version", h.Version)
	if h.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	}
	r.Get("/docs/*", httpSwagger.Handler())

	// Webhook intake authenticates by provider signature, not session.
	r.Post("/webhooks/billing", h.BillingWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Get("/usage", h.GetUsage)
		r.Post("/entitlements/{resource}/consume", h.ConsumeResource)
		r.Post("/billing/portal", h.CreatePortalSession)
		r.Post("/billing/checkout", h.CreateCheckoutSession)
	})

	return r
}

// -----------------------------------------------------------------------------
// Response types
// -----------------------------------------------------------------------------

// UsageResponse is the cache-friendly usage snapshot.
type UsageResponse struct {
	Used  map[tier.Resource]int64 `json:"used"`
	Limit map[tier.Resource]int64 `json:"limit"`
	Plan  tier.ID                 `json:"plan"`
}

// DecisionResponse reports one consumption attempt.
type DecisionResponse struct {
	Allowed   bool   `json:"allowed"`
	Plan      string `json:"plan"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
}

// SessionResponse carries a provider-hosted session URL.
type SessionResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
	Service string `json:"service" example:"tollgate"`
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// GetUsage returns the caller's usage snapshot.
//
//	@Summary		Get usage snapshot
//	@Description	Current-period usage and limits per resource, with the effective plan
//	@Tags			Entitlements
//	@Produce		json
//	@Success		200	{object}	UsageResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/usage [get]
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, r, app.ErrUnauthenticated)
		return
	}

	snap, err := h.entitlements.Snapshot(r.Context(), id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if snap.Degraded && h.metrics != nil {
		h.metrics.TierDowngrades.Inc()
	}

	w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(int(usageCacheMaxAge.Seconds())))
	writeJSON(w, http.StatusOK, UsageResponse{
		Used:  snap.Used,
		Limit: snap.Limit,
		Plan:  snap.Tier,
	})
}

// ConsumeResource gates one consumption of a resource.
//
//	@Summary		Consume a rate-limited resource
//	@Description	Atomically consumes one unit of the resource if quota remains
//	@Tags			Entitlements
//	@Produce		json
//	@Param			resource	path		string	true	"Resource kind (e.g. ai_move)"
//	@Success		200			{object}	DecisionResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		429			{object}	DecisionResponse	"Quota exhausted"
//	@Failure		500			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/entitlements/{resource}/consume [post]
func (h *Handler) ConsumeResource(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, r, app.ErrUnauthenticated)
		return
	}

	resource := tier.Resource(chi.URLParam(r, "resource"))
	if resource == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing resource"})
		return
	}

	decision, err := h.entitlements.Check(r.Context(), id.UserID, resource)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ChecksTotal.WithLabelValues(string(resource), string(decision.Tier), strconv.FormatBool(decision.Allowed)).Inc()
		if !decision.Allowed {
			h.metrics.QuotaDenials.WithLabelValues(string(resource), string(decision.Tier)).Inc()
		}
	}

	status := http.StatusOK
	if !decision.Allowed {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, DecisionResponse{
		Allowed:   decision.Allowed,
		Plan:      string(decision.Tier),
		Used:      decision.Used,
		Limit:     decision.Limit,
		Remaining: decision.Remaining,
	})
}

// portalRequest is the optional body for session endpoints.
type portalRequest struct {
	Origin string  `json:"origin"`
	Tier   tier.ID `json:"tier,omitempty"`
}

// CreatePortalSession creates a billing portal session.
//
//	@Summary		Open the billing portal
//	@Description	Creates a provider-hosted portal session for the caller's billing identity
//	@Tags			Billing
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Failure		400	{object}	ErrorResponse	"No billing identity"
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/portal [post]
func (h *Handler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, r, app.ErrUnauthenticated)
		return
	}

	var req portalRequest
	if r.Body != nil {
		// Body is optional; decode errors just mean no origin hint.
		json.NewDecoder(r.Body).Decode(&req)
	}

	url, err := h.billing.CreatePortalSession(r.Context(), id, req.Origin)
	if err != nil {
		if h.metrics != nil {
			h.metrics.PortalSessions.WithLabelValues("error").Inc()
		}
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PortalSessions.WithLabelValues("ok").Inc()
	}
	writeJSON(w, http.StatusOK, SessionResponse{URL: url})
}

// CreateCheckoutSession creates a subscription checkout session.
//
//	@Summary		Start a subscription checkout
//	@Description	Creates a provider-hosted checkout session for a paid tier
//	@Tags			Billing
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Failure		400	{object}	ErrorResponse	"Unknown or free tier"
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/checkout [post]
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, r, app.ErrUnauthenticated)
		return
	}

	var req portalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tier == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "tier is required"})
		return
	}

	url, err := h.billing.CreateCheckoutSession(r.Context(), id, req.Tier, req.Origin)
	if err != nil {
		if h.metrics != nil {
			h.metrics.CheckoutSessions.WithLabelValues("error").Inc()
		}
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CheckoutSessions.WithLabelValues("ok").Inc()
	}
	writeJSON(w, http.StatusOK, SessionResponse{URL: url})
}

// Health returns a liveness check.
//
//	@Summary	Health check
//	@Tags		System
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/healthz [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Version returns the running version.
//
//	@Summary	Service version
//	@Tags		System
//	@Produce	json
//	@Success	200	{object}	VersionResponse
//	@Router		/version [get]
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: h.version, Service: "tollgate"})
}

// -----------------------------------------------------------------------------
// Error translation
// -----------------------------------------------------------------------------

// writeError maps service error kinds to transport codes. Provider and
// store detail stays in the logs; clients get generic retry guidance.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, app.ErrNoBillingIdentity):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "no subscription found"})
	case errors.Is(err, app.ErrUnknownTier):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unknown tier"})
	case app.IsProviderError(err):
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("billing provider failure")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "billing temporarily unavailable, please try again"})
	case errors.Is(err, app.ErrResolutionUnavailable), errors.Is(err, app.ErrStoreUnavailable):
		if h.metrics != nil {
			h.metrics.StoreErrors.WithLabelValues(r.URL.Path).Inc()
		}
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("store failure")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "temporarily unavailable, please try again"})
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
