// Package types defines shared Go types used by both the agent and server.
// FitSnapshot is the record the agent ships for every (source, qubit) pair
// and the server stores, alerts on and serves over the REST API.
package types
