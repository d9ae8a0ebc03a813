// Package telemetry exports reactive engine events to Prometheus and
// OpenTelemetry.
//
// Install wires a Collector into the engine's instrumentation hook:
//
//	telemetry.Install(
//	    telemetry.WithNamespace("myapp"),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
//
// Async evaluations additionally get a span each, using the global
// OpenTelemetry tracer provider. Configure the provider in main() the
// usual way; without one the spans are no-ops.
package telemetry
