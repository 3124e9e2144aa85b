// Package otel exposes phoneverify engine metrics as OpenTelemetry observable
// instruments. Counters become Int64ObservableCounter; each latency bucket
// becomes a cumulative Int64ObservableGauge. One callback reads the engine
// snapshot per collection. Callers own the MeterProvider.
package otel
