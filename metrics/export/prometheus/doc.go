// Package prometheus renders gateway metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads an engine's counters and the send latency
// histogram and serves them from an [http.Handler]. Counter names are
// wagw_*_total; the histogram is wagw_send_latency_seconds. When the source
// can list sessions, a wagw_sessions gauge labeled by state is added.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
