// Package api implements the HTTP REST API for qexp-server.
//
// New(store, alerts, metrics) returns an http.Handler that serves:
//
//	GET  /api/v1/health                  mean quality score, state, per-state counts
//	GET  /api/v1/qubits                  all live qubits (?source=, ?state= filters)
//	GET  /api/v1/qubits/{source}/{qubit} one qubit with fit history; 404 if unknown or stale
//	GET  /api/v1/sources                 live qubits grouped by source
//	GET  /api/v1/alerts                  firing and recently resolved alerts
//	GET  /api/v1/snapshot                all live qubits + generated_at
//	POST /api/v1/fit                     ad hoc decay fit (400 bad input, 422 no convergence)
//	POST /api/v1/xeb                     cross-entropy benchmarking score
//	POST /api/v1/crosstalk               readout crosstalk rates
//
// All endpoints respond with Content-Type: application/json and return 405
// for the wrong method. JSON types are defined in types.go. No external HTTP
// framework is used.
package api
