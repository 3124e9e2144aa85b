package internaldefs

import (
	"github.com/jakejscott/phoneverify"
)

type CounterDef struct {
	ID   phoneverify.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   phoneverify.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events the audit dispatcher discarded.
const AuditDroppedName = "phoneverify_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: phoneverify.MetricStartSuccess, Name: "phoneverify_start_success_total", Help: "Start calls that returned a verification id."},
	{ID: phoneverify.MetricStartFailure, Name: "phoneverify_start_failure_total", Help: "Start calls that returned an error."},
	{ID: phoneverify.MetricStartNewVersion, Name: "phoneverify_start_new_version_total", Help: "Attempts created by Start."},
	{ID: phoneverify.MetricStartConflict, Name: "phoneverify_start_conflict_total", Help: "Version inserts lost to a concurrent Start."},
	{ID: phoneverify.MetricDeliveryFailure, Name: "phoneverify_delivery_failure_total", Help: "Codes the sender failed to deliver."},
	{ID: phoneverify.MetricCheckSuccess, Name: "phoneverify_check_success_total", Help: "Checks that verified an attempt."},
	{ID: phoneverify.MetricCheckFailure, Name: "phoneverify_check_failure_total", Help: "Checks that returned an error."},
	{ID: phoneverify.MetricCheckInvalidCode, Name: "phoneverify_check_invalid_code_total", Help: "Checks with a wrong code."},
	{ID: phoneverify.MetricCheckExpired, Name: "phoneverify_check_expired_total", Help: "Checks against an expired attempt."},
	{ID: phoneverify.MetricCheckAttemptsExceeded, Name: "phoneverify_check_attempts_exceeded_total", Help: "Checks against an exhausted attempt."},
	{ID: phoneverify.MetricCheckAlreadyVerified, Name: "phoneverify_check_already_verified_total", Help: "Checks against a verified attempt."},
	{ID: phoneverify.MetricCheckNotFound, Name: "phoneverify_check_not_found_total", Help: "Checks for an unknown id."},
	{ID: phoneverify.MetricRateLimitHit, Name: "phoneverify_rate_limit_hit_total", Help: "Checks denied by the per-phone rate limit."},
	{ID: phoneverify.MetricStatusLookup, Name: "phoneverify_status_lookup_total", Help: "Status reads."},
}

var HistogramDefs = []HistogramDef{
	{ID: phoneverify.MetricStartLatency, Name: "phoneverify_start_latency_seconds", Help: "Start latency, including delivery."},
	{ID: phoneverify.MetricCheckLatency, Name: "phoneverify_check_latency_seconds", Help: "Check latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = [phoneverify.HistogramBucketCount]string{
	"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = [phoneverify.HistogramBucketCount]string{
	"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf",
}

type Buckets = [phoneverify.HistogramBucketCount]uint64

// Cumulative converts snapshot buckets into cumulative counts. Short input is
// zero padded.
func Cumulative(raw []uint64) Buckets {
	var out Buckets
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
