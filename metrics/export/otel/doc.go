// Package otel binds gateway counters and histograms to OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter, one
// Int64ObservableGauge per latency bucket and, when the source can list
// sessions, a wagw_sessions gauge with a state attribute. A single callback
// reads [goWA.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
