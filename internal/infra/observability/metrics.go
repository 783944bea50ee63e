package observability

import (
	"strconv"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// OTP event labels.
const (
	OTPSent      = "sent"
	OTPVerified  = "verified"
	OTPRejected  = "rejected"
	OTPCooldown  = "cooldown"
	OTPDelivFail = "delivery_failed"
)

// Metrics holds all Prometheus metrics for the BFF.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	otpEvents       *prometheus.CounterVec
	credits         *prometheus.CounterVec
	proxyUpstream   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voicerly_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicerly_requests_total",
				Help: "Total HTTP requests by route and status code.",
			},
			[]string{"route", "status"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicerly_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		otpEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicerly_otp_events_total",
				Help: "One-time code lifecycle events.",
			},
			[]string{"event"},
		),
		credits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicerly_credits_total",
				Help: "Credit ledger activity (deducted amount, bonus grants, signups).",
			},
			[]string{"kind"},
		),
		proxyUpstream: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicerly_proxy_upstream_total",
				Help: "VoxCPM proxy responses by status class.",
			},
			[]string{"status_class"},
		),
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrOTP records an OTP lifecycle event.
func (m *Metrics) IncrOTP(event string) {
	m.otpEvents.WithLabelValues(event).Inc()
}

// AddCreditsDeducted adds a deducted amount.
func (m *Metrics) AddCreditsDeducted(amount float64) {
	m.credits.WithLabelValues(domain.LedgerDeduct).Add(amount)
}

// IncrBonus counts a grant_signup_bonus call.
func (m *Metrics) IncrBonus() {
	m.credits.WithLabelValues(domain.LedgerBonus).Inc()
}

// IncrSignup counts a created profile.
func (m *Metrics) IncrSignup() {
	m.credits.WithLabelValues(domain.LedgerSignup).Inc()
}

// IncrProxy records a proxied response; status 0 means the upstream was unreachable.
func (m *Metrics) IncrProxy(status int) {
	class := "unreachable"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	m.proxyUpstream.WithLabelValues(class).Inc()
}

// Snapshot returns current counter values for GET /api/metrics/usage.
func (m *Metrics) Snapshot() *domain.UsageSnapshot {
	proxyTotal := 0.0
	for _, class := range []string{"1xx", "2xx", "3xx", "4xx", "5xx", "unreachable"} {
		proxyTotal += getCounterValue(m.proxyUpstream, class)
	}

	return &domain.UsageSnapshot{
		OTPSent:          int64(getCounterValue(m.otpEvents, OTPSent)),
		OTPVerified:      int64(getCounterValue(m.otpEvents, OTPVerified)),
		OTPRejected:      int64(getCounterValue(m.otpEvents, OTPRejected)),
		CreditsDeducted:  getCounterValue(m.credits, domain.LedgerDeduct),
		BonusesGranted:   int64(getCounterValue(m.credits, domain.LedgerBonus)),
		Signups:          int64(getCounterValue(m.credits, domain.LedgerSignup)),
		ProxyRequests:    int64(proxyTotal),
		ProxyUpstreamErr: int64(getCounterValue(m.proxyUpstream, "unreachable")),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
