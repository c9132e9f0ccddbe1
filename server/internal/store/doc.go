// Package store holds the latest relaxation fit for every (source, qubit)
// pair in memory, plus a short per-qubit history of earlier fits for drift
// inspection. Entries expire after a TTL and are removed by a background
// eviction loop.
package store
