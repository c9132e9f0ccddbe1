// Package auth enforces API key authentication on both server listeners.
//
// A Guard is built once from the server auth config. Its UnaryInterceptor
// guards the gRPC receiver that agents ship fit snapshots to, and its
// Middleware guards the REST API and WebSocket stream. Both run the same
// Check: everything passes when mode != "apikey" or the key is empty, open
// targets (health paths and methods) skip the check, and keys are compared
// in constant time.
package auth
