// Package otel publishes engine counters through an OpenTelemetry Meter.
//
// Every counter becomes an Int64ObservableCounter and every histogram bucket
// an Int64ObservableGauge. One registered callback reads the engine snapshot
// per collection. The caller owns the MeterProvider.
package otel
