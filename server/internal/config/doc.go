// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort       : port for the gRPC receiver (default 50051)
//   - HTTPPort       : port for the REST API, WebSocket hub and /metrics (default 8080)
//   - Auth.Mode      : "apikey" or "none"; "mtls" accepted behind a TLS terminator
//   - Auth.KeyEnv    : environment variable holding the expected API key
//   - Auth.Header    : gRPC metadata/HTTP header name (default "x-api-key")
//   - Snapshot.TTL   : how long a qubit's latest fit stays live (default 15m)
//   - Stream.Interval: WebSocket broadcast period (default 5s)
//   - Alerts         : threshold rules over fit fields and webhook targets
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
