package internaldefs

import (
	goWA "github.com/MrEthical07/goWA"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goWA.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   goWA.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goWA.MetricSessionCreated, Name: "wagw_session_created_total", Help: "Sessions registered."},
	{ID: goWA.MetricSessionDuplicate, Name: "wagw_session_duplicate_total", Help: "Session creations rejected as duplicate."},
	{ID: goWA.MetricSessionCreateFailed, Name: "wagw_session_create_failed_total", Help: "Session creations whose client failed to build or start."},
	{ID: goWA.MetricSessionRemoved, Name: "wagw_session_removed_total", Help: "Sessions removed by logout."},
	{ID: goWA.MetricSessionRemoveFailed, Name: "wagw_session_remove_failed_total", Help: "Logouts that failed at the client."},
	{ID: goWA.MetricChallengeIssued, Name: "wagw_challenge_issued_total", Help: "Pairing challenges received from clients."},
	{ID: goWA.MetricSessionAuthenticated, Name: "wagw_session_authenticated_total", Help: "Sessions that completed pairing."},
	{ID: goWA.MetricSessionReady, Name: "wagw_session_ready_total", Help: "Sessions that became ready to send."},
	{ID: goWA.MetricSessionLoggedOut, Name: "wagw_session_logged_out_total", Help: "Sessions closed by a remote logout."},
	{ID: goWA.MetricSendSuccess, Name: "wagw_send_success_total", Help: "Recipients that received a message."},
	{ID: goWA.MetricSendFailure, Name: "wagw_send_failure_total", Help: "Recipients whose send failed."},
	{ID: goWA.MetricSendTimeout, Name: "wagw_send_timeout_total", Help: "Sends abandoned at the deadline."},
	{ID: goWA.MetricValidationRejected, Name: "wagw_validation_rejected_total", Help: "Requests rejected by input validation."},
	{ID: goWA.MetricBroadcast, Name: "wagw_broadcast_total", Help: "Broadcast requests dispatched."},
	{ID: goWA.MetricChallengeRendered, Name: "wagw_challenge_rendered_total", Help: "Challenge images served."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goWA.MetricSendLatency, Name: "wagw_send_latency_seconds", Help: "Per-recipient send latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's latency buckets.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket in instrument names that cannot carry labels.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// missing buckets.
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

// SessionGaugeName is the per-state gauge of registered sessions.
const (
	SessionGaugeName = "wagw_sessions"
	SessionGaugeHelp = "Registered sessions by lifecycle state."
)

// SessionStates are the states a registered session can be in. Closed
// sessions leave the registry and are not reported.
var SessionStates = []goWA.SessionState{
	goWA.StateCreated,
	goWA.StateAwaitingScan,
	goWA.StateAuthenticated,
	goWA.StateReady,
}

// CountByState tallies statuses per entry of SessionStates.
func CountByState(statuses []goWA.SessionStatus) []int {
	counts := make([]int, len(SessionStates))
	for _, st := range statuses {
		for i, state := range SessionStates {
			if st.State == state {
				counts[i]++
				break
			}
		}
	}
	return counts
}
