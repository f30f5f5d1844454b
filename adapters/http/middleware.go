package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/tollgate/app"
)

type contextKey string

const identityKey contextKey = "identity"

// identityFrom extracts the authenticated identity from the request context.
func identityFrom(ctx context.Context) (app.Identity, bool) {
	id, ok := ctx.Value(identityKey).(app.Identity)
	return id, ok
}

// withIdentity returns a context carrying the authenticated identity.
// Exposed for tests that exercise handlers without the middleware.
func withIdentity(ctx context.Context, id app.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// authenticate validates the bearer token and attaches the caller
// identity. Requests without a valid token never reach the services.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.writeError(w, r, app.ErrUnauthenticated)
			return
		}

		claims, err := h.tokens.ValidateToken(token)
		if err != nil {
			h.logger.Debug().Err(err).Msg("token validation failed")
			h.writeError(w, r, app.ErrUnauthenticated)
			return
		}

		id := app.Identity{UserID: claims.UserID, Email: claims.Email}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestMetrics records request counts, latency, and in-flight gauge.
func (h *Handler) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		h.metrics.RequestsInFlight.Inc()
		defer h.metrics.RequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		h.metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
