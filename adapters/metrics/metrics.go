// Package metrics provides Prometheus metrics collection for tollgate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for tollgate.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Entitlement metrics
	ChecksTotal    *prometheus.CounterVec
	QuotaDenials   *prometheus.CounterVec
	TierDowngrades prometheus.Counter

	// Billing metrics
	PortalSessions   *prometheus.CounterVec
	CheckoutSessions *prometheus.CounterVec
	WebhookEvents    *prometheus.CounterVec

	// Store metrics
	StoreErrors *prometheus.CounterVec
}

// New creates a metrics collector registered on its own registry.
// A private registry keeps tests from colliding on the global default.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tollgate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tollgate",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "entitlement_checks_total",
				Help:      "Entitlement checks by resource, tier, and outcome",
			},
			[]string{"resource", "tier", "allowed"},
		),
		QuotaDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "quota_denials_total",
				Help:      "Consumption attempts denied by quota",
			},
			[]string{"resource", "tier"},
		),
		TierDowngrades: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "tier_downgrades_total",
				Help:      "Resolutions that degraded a stored tier to free",
			},
		),
		PortalSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "portal_sessions_total",
				Help:      "Billing portal sessions by outcome",
			},
			[]string{"outcome"},
		),
		CheckoutSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "checkout_sessions_total",
				Help:      "Checkout sessions by outcome",
			},
			[]string{"outcome"},
		),
		WebhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "webhook_events_total",
				Help:      "Billing webhook events by outcome",
			},
			[]string{"outcome"},
		),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "store_errors_total",
				Help:      "Persistent store failures by operation",
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(
		c.RequestsTotal,
		c.RequestDuration,
		c.RequestsInFlight,
		c.ChecksTotal,
		c.QuotaDenials,
		c.TierDowngrades,
		c.PortalSessions,
		c.CheckoutSessions,
		c.WebhookEvents,
		c.StoreErrors,
	)

	return c
}
