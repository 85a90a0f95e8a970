// Package observability provides OpenTelemetry tracing and metrics for the
// response pipeline. Each pipeline stage (normalize, transcribe, score,
// persist) runs under its own span, and stage counters/durations are exported
// over OTLP HTTP.
package observability
