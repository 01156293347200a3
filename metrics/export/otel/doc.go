// Package otel exports authsession metrics as OpenTelemetry observable
// instruments. The caller owns the MeterProvider and passes a Meter to
// [NewOTelExporter].
package otel
