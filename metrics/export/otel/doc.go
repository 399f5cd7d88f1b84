// Package otel publishes authcore engine metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter, a
// bucket counter carrying an "le" attribute for the latency histogram, and
// the dropped-activity counter. A single callback reads the engine snapshot
// on every collection.
//
// The caller owns the MeterProvider and its readers.
package otel
