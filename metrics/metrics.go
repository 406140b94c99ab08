// Package metrics holds the prometheus collectors for the authorization flow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authcode"

// Redemption outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "not_found"
	OutcomeExpired       = "expired"
	OutcomeStateMismatch = "state_mismatch"
	OutcomeError         = "error"
)

// Validation results reported by ObserveValidation.
const (
	ValidationValid   = "valid"
	ValidationRotated = "rotated"
	ValidationRevoked = "revoked"
	ValidationReauth  = "reauth"
	ValidationInvalid = "invalid"
)

// Metrics groups every collector; a nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	codesIssued     prometheus.Counter
	codeRedemptions *prometheus.CounterVec
	codeLookupTries prometheus.Histogram
	tokensIssued    *prometheus.CounterVec
	validations     *prometheus.CounterVec
	revocations     prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDurations   *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codes_issued_total",
			Help:      "Authorization codes issued.",
		}),
		codeRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_redemptions_total",
			Help:      "Authorization code redemptions by outcome.",
		}, []string{"outcome"}),
		codeLookupTries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "code_lookup_attempts",
			Help:      "Store lookups needed to redeem an authorization code.",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens minted, by kind and grant path.",
		}, []string{"kind", "path"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_validations_total",
			Help:      "Gated request validations by result.",
		}, []string{"result"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Logout revocations performed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.codesIssued,
		m.codeRedemptions,
		m.codeLookupTries,
		m.tokensIssued,
		m.validations,
		m.revocations,
		m.httpRequests,
		m.httpDurations,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CodeIssued() {
	if m == nil {
		return
	}
	m.codesIssued.Inc()
}

// CodeRedeemed records one redemption and how many store lookups it took.
func (m *Metrics) CodeRedeemed(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.codeRedemptions.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		m.codeLookupTries.Observe(float64(attempts))
	}
}

// TokensIssued counts an access/refresh pair (path "exchange") or a lone
// rotated access token (path "rotation").
func (m *Metrics) TokensIssued(path string, withRefresh bool) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues("access", path).Inc()
	if withRefresh {
		m.tokensIssued.WithLabelValues("refresh", path).Inc()
	}
}

func (m *Metrics) ObserveValidation(result string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(result).Inc()
}

func (m *Metrics) Revoked() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}

// ObserveHTTP records a finished request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDurations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
