package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected because the email is taken."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: authcore.MetricLoginRejected, Name: "authcore_login_rejected_total", Help: "Logins rejected for a deactivated or banned account."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful token refreshes."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionInvalidated, Name: "authcore_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logouts."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
	{ID: authcore.MetricEmailVerificationRequest, Name: "authcore_email_verification_request_total", Help: "Verification emails requested."},
	{ID: authcore.MetricEmailVerificationSuccess, Name: "authcore_email_verification_success_total", Help: "Successful email verifications."},
	{ID: authcore.MetricEmailVerificationFailure, Name: "authcore_email_verification_failure_total", Help: "Rejected verification tokens."},
	{ID: authcore.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Password reset requests."},
	{ID: authcore.MetricPasswordResetConfirmSuccess, Name: "authcore_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: authcore.MetricPasswordResetConfirmFailure, Name: "authcore_password_reset_confirm_failure_total", Help: "Rejected password reset tokens."},
	{ID: authcore.MetricPasswordRehashed, Name: "authcore_password_rehashed_total", Help: "Password digests upgraded at login."},
	{ID: authcore.MetricAPIKeyCreated, Name: "authcore_api_key_created_total", Help: "Created API keys."},
	{ID: authcore.MetricAPIKeyRevoked, Name: "authcore_api_key_revoked_total", Help: "Revoked API keys."},
	{ID: authcore.MetricAPIKeyValidationSuccess, Name: "authcore_api_key_validation_success_total", Help: "Accepted API key presentations."},
	{ID: authcore.MetricAPIKeyValidationFailure, Name: "authcore_api_key_validation_failure_total", Help: "Rejected API key presentations."},
	{ID: authcore.MetricAPIKeyRateLimited, Name: "authcore_api_key_rate_limited_total", Help: "API key requests over the key's limits."},
	{ID: authcore.MetricRateLimitHit, Name: "authcore_rate_limit_hit_total", Help: "Policy rate-limit checks that denied a request."},
	{ID: authcore.MetricAccountBanned, Name: "authcore_account_banned_total", Help: "Account bans."},
	{ID: authcore.MetricAccountUnbanned, Name: "authcore_account_unbanned_total", Help: "Account unbans."},
	{ID: authcore.MetricAccountDeleted, Name: "authcore_account_deleted_total", Help: "Account deletions."},
	{ID: authcore.MetricRoleChanged, Name: "authcore_role_changed_total", Help: "Role changes."},
	{ID: authcore.MetricMailFailure, Name: "authcore_mail_failure_total", Help: "Emails that could not be delivered."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Bearer and API key authentication latency."},
}

// ActivityDroppedName is the counter for activity events dropped by a full dispatcher.
const ActivityDroppedName = "authcore_activity_dropped_total"

// HistogramBounds are the upper bounds, in seconds, of the engine's eight buckets.
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

// HistogramBoundsSeconds are HistogramBounds without the implicit +Inf bucket.
var HistogramBoundsSeconds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
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
