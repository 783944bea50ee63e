package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// Health states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusSkipped   = "skipped"
)

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	Error       string `json:"error,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// UsageSnapshot is returned by GET /api/metrics/usage.
type UsageSnapshot struct {
	OTPSent          int64   `json:"otpSent"`
	OTPVerified      int64   `json:"otpVerified"`
	OTPRejected      int64   `json:"otpRejected"`
	CreditsDeducted  float64 `json:"creditsDeducted"`
	BonusesGranted   int64   `json:"bonusesGranted"`
	Signups          int64   `json:"signups"`
	ProxyRequests    int64   `json:"proxyRequests"`
	ProxyUpstreamErr int64   `json:"proxyUpstreamErrors"`
}
