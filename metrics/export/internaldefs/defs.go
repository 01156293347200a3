package internaldefs

import (
	"github.com/MrEthical07/authsession"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authsession.MetricLoginSuccess, Name: "authsession_login_success_total", Help: "Successful logins."},
	{ID: authsession.MetricLoginFailure, Name: "authsession_login_failure_total", Help: "Failed logins."},
	{ID: authsession.MetricRefreshSuccess, Name: "authsession_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authsession.MetricRefreshFailure, Name: "authsession_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authsession.MetricRefreshReuseDetected, Name: "authsession_refresh_reuse_detected_total", Help: "Superseded refresh tokens presented again."},
	{ID: authsession.MetricLogout, Name: "authsession_logout_total", Help: "Logouts."},
	{ID: authsession.MetricPasswordResetRequest, Name: "authsession_password_reset_request_total", Help: "Password reset link requests."},
	{ID: authsession.MetricPasswordResetRateLimited, Name: "authsession_password_reset_rate_limited_total", Help: "Throttled password reset link requests."},
	{ID: authsession.MetricPasswordResetConfirmSuccess, Name: "authsession_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: authsession.MetricPasswordResetConfirmFailure, Name: "authsession_password_reset_confirm_failure_total", Help: "Rejected password resets."},
	{ID: authsession.MetricEmailVerificationRequest, Name: "authsession_email_verification_request_total", Help: "Verification link requests."},
	{ID: authsession.MetricEmailVerificationRateLimited, Name: "authsession_email_verification_rate_limited_total", Help: "Throttled verification link requests."},
	{ID: authsession.MetricEmailVerificationSuccess, Name: "authsession_email_verification_success_total", Help: "Completed email verifications."},
	{ID: authsession.MetricEmailVerificationFailure, Name: "authsession_email_verification_failure_total", Help: "Rejected email verifications."},
	{ID: authsession.MetricHandoffStarted, Name: "authsession_handoff_started_total", Help: "Issued handoff tokens."},
	{ID: authsession.MetricHandoffCompleted, Name: "authsession_handoff_completed_total", Help: "Handoff tokens exchanged for a session."},
	{ID: authsession.MetricHandoffRejected, Name: "authsession_handoff_rejected_total", Help: "Rejected handoff tokens."},
	{ID: authsession.MetricEphemeralExpired, Name: "authsession_ephemeral_expired_total", Help: "Single-use tokens presented after expiry."},
	{ID: authsession.MetricPasswordRehashed, Name: "authsession_password_rehashed_total", Help: "Password hashes upgraded on login."},
}

var HistogramDefs = []HistogramDef{
	{ID: authsession.MetricValidateLatency, Name: "authsession_validate_latency_seconds", Help: "Access token validation latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "authsession_audit_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// without native histograms.
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

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
