// Package observability provides structured logging, Prometheus metrics,
// health probes, and graceful-shutdown plumbing for the service.
//
// The Logger is a thin wrapper over log/slog emitting JSON; handlers pull a
// request-scoped logger out of the context via FromContext. Metrics are
// registered against a caller-supplied prometheus.Registry so tests can use
// isolated registries.
package observability
