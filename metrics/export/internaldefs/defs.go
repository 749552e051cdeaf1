package internaldefs

import (
	goVPS "github.com/MrEthical07/goVPS"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goVPS.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   goVPS.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goVPS.MetricLoginSuccess, Name: "govps_login_success_total", Help: "Successful logins."},
	{ID: goVPS.MetricLoginFailure, Name: "govps_login_failure_total", Help: "Failed logins, throttled attempts excluded."},
	{ID: goVPS.MetricLoginThrottled, Name: "govps_login_throttled_total", Help: "Login attempts refused by the failure throttle."},
	{ID: goVPS.MetricTwoFactorRequired, Name: "govps_two_factor_required_total", Help: "Logins rejected for a missing second-factor code."},
	{ID: goVPS.MetricTwoFactorFailure, Name: "govps_two_factor_failure_total", Help: "Wrong second-factor codes."},
	{ID: goVPS.MetricAccountDisabled, Name: "govps_account_disabled_total", Help: "Logins and refreshes refused for disabled accounts."},
	{ID: goVPS.MetricRefreshSuccess, Name: "govps_refresh_success_total", Help: "Successful token refreshes."},
	{ID: goVPS.MetricRefreshFailure, Name: "govps_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: goVPS.MetricRegisterSuccess, Name: "govps_register_success_total", Help: "Created accounts."},
	{ID: goVPS.MetricRegisterDuplicate, Name: "govps_register_duplicate_total", Help: "Registrations rejected for a taken email or username."},
	{ID: goVPS.MetricPasswordRehashed, Name: "govps_password_rehashed_total", Help: "Password hashes upgraded on login."},
	{ID: goVPS.MetricPasswordChangeSuccess, Name: "govps_password_change_success_total", Help: "Successful password changes."},
	{ID: goVPS.MetricPasswordChangeInvalidOld, Name: "govps_password_change_invalid_old_total", Help: "Password changes rejected for a wrong current password."},
	{ID: goVPS.MetricForbidden, Name: "govps_forbidden_total", Help: "Operations denied by the access mediator."},
	{ID: goVPS.MetricVPSCreated, Name: "govps_vps_created_total", Help: "Created VPS instances."},
	{ID: goVPS.MetricVPSTransition, Name: "govps_vps_transition_total", Help: "Accepted lifecycle commands."},
	{ID: goVPS.MetricVPSTransitionRejected, Name: "govps_vps_transition_rejected_total", Help: "Lifecycle commands refused by the state machine."},
	{ID: goVPS.MetricVPSTransitionRaced, Name: "govps_vps_transition_raced_total", Help: "Lifecycle commands that lost a concurrent status change."},
	{ID: goVPS.MetricHypervisorConfirmed, Name: "govps_hypervisor_confirmed_total", Help: "Hypervisor commands confirmed in time."},
	{ID: goVPS.MetricHypervisorFailed, Name: "govps_hypervisor_failed_total", Help: "Hypervisor commands that reported an error."},
	{ID: goVPS.MetricHypervisorPending, Name: "govps_hypervisor_pending_total", Help: "Hypervisor commands still unconfirmed at the timeout."},
}

var HistogramDefs = []HistogramDef{
	{ID: goVPS.MetricValidateLatency, Name: "govps_validate_latency_seconds", Help: "Access token validation latency."},
	{ID: goVPS.MetricHypervisorLatency, Name: "govps_hypervisor_latency_seconds", Help: "Hypervisor command round-trip latency."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's millisecond buckets.
var HistogramBounds = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundSuffix is HistogramBounds in a form usable inside OTel
// instrument names.
var HistogramBoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

const bucketCount = 8

// CumulativeBuckets converts per-bucket counts to the running totals both
// exposition formats expect. Missing buckets count as zero.
func CumulativeBuckets(raw []uint64) [bucketCount]uint64 {
	var out [bucketCount]uint64
	var running uint64
	for i := 0; i < bucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
