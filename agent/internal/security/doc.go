// Package security inspects the TLS certificates of https instrument
// exporters so an expiring certificate is noticed before scrapes start to
// fail. The agent runs Audit at startup and then daily.
package security
