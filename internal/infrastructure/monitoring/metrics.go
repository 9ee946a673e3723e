package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the Prometheus collectors published by the auth layer.
type Metrics struct {
	// AuthResults counts token authentication outcomes by result
	// (ok, invalid, expired, revoked, anonymous).
	AuthResults *prometheus.CounterVec

	// SignatureFailures counts signature verification failures by kind.
	SignatureFailures *prometheus.CounterVec

	// RateLimitDenials counts rate-limited requests by route.
	RateLimitDenials *prometheus.CounterVec

	// RequestDuration observes handler latency by route and status.
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the auth metrics on the given registerer. Passing nil
// uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AuthResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcoserve",
			Subsystem: "auth",
			Name:      "token_auth_total",
			Help:      "Token authentication outcomes.",
		}, []string{"result"}),
		SignatureFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcoserve",
			Subsystem: "auth",
			Name:      "signature_failures_total",
			Help:      "Signature verification failures by kind.",
		}, []string{"kind"}),
		RateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arcoserve",
			Subsystem: "auth",
			Name:      "rate_limit_denials_total",
			Help:      "Requests denied by the rate limiter.",
		}, []string{"route"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arcoserve",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
