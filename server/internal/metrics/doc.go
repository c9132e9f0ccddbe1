// Package metrics exposes the server's own Prometheus instrumentation on a
// private registry: results received from agents, fits by outcome, ad hoc fit
// latency, alert events, per-qubit T1 gauges and gRPC handling metrics.
package metrics
