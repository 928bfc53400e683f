// Package internaldefs exposes stable metric name definitions shared by
// exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and OTel
// exporters emit identical metric names and bucket boundaries. Changing a
// definition here changes all exporters at once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs

import (
	sessionguard "github.com/MrEthical07/sessionguard"
)

// CounterDef defines a public type used by sessionguard APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by sessionguard APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session security engine.
var CounterDefs = []CounterDef{
	{ID: sessionguard.MetricLoginSuccess, Name: "sessionguard_login_success_total", Help: "Successful login attempts."},
	{ID: sessionguard.MetricLoginFailure, Name: "sessionguard_login_failure_total", Help: "Failed login attempts."},
	{ID: sessionguard.MetricLoginRateLimited, Name: "sessionguard_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: sessionguard.MetricRefreshSuccess, Name: "sessionguard_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: sessionguard.MetricRefreshFailure, Name: "sessionguard_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: sessionguard.MetricRefreshReuseDetected, Name: "sessionguard_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: sessionguard.MetricFamilyRevoked, Name: "sessionguard_family_revoked_total", Help: "Whole-family refresh token revocations."},
	{ID: sessionguard.MetricLogout, Name: "sessionguard_logout_total", Help: "Logout operations."},
	{ID: sessionguard.MetricRateLimitHit, Name: "sessionguard_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: sessionguard.MetricSecurityAlert, Name: "sessionguard_security_alert_total", Help: "Security alerts (brute force, token reuse)."},
	{ID: sessionguard.MetricCSRFRejected, Name: "sessionguard_csrf_rejected_total", Help: "Requests rejected by the CSRF guard."},
	{ID: sessionguard.MetricHashUpgraded, Name: "sessionguard_hash_upgraded_total", Help: "Password hashes silently upgraded on login."},
	{ID: sessionguard.MetricStoreUnavailable, Name: "sessionguard_store_unavailable_total", Help: "Operations failed on backing store outage."},
}

// HistogramDefs is an exported constant or variable used by the session security engine.
var HistogramDefs = []HistogramDef{
	{ID: sessionguard.MetricAuthenticateLatency, Name: "sessionguard_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session security engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session security engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
