// Package config loads and watches the agent section of config.yaml.
//
// Top-level types:
//   - Config{Agent}: the agent's slice of the YAML tree
//   - AgentConfig: server_endpoint, scrape/ship intervals, buffer_size,
//     fit, quality, sources [], server_auth
//   - FitConfig: initial guess and stopping rules for the decay estimator;
//     Options() converts it to decay.Options
//   - QualityConfig: plausible T1 range and the stderr ratio used for grading
//   - Source: id, type (prometheus|file|synthetic), endpoint, path,
//     synthetic, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) reads the file, applies defaults (30s scrape, 15s ship, 1000
// buffer, A=1 T=50µs B=0, 10000 iterations, T1 range 10–200µs), then
// validates required fields and enums.
//
// Watch(ctx, path, onChange) reloads on fsnotify write/create events for the
// file and passes each valid config to onChange.
package config
