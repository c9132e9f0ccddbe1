// Package scraper collects T1 relaxation sweeps from measurement sources.
// Each scrape returns a SweepResult holding, per qubit, the excited-state
// population measured at each delay. The compute engine merges these points
// across scrapes and fits them.
//
// Implemented sources: instrument exporters speaking the Prometheus text
// format (prometheus.go), JSON sweep files (file.go) and generated sweeps
// (synthetic.go). Factory: New(config.Source) returns the correct Scraper.
//
// Authentication for HTTP sources (mTLS, API key, bearer token, basic) is
// handled by the shared authRoundTripper in base.go.
package scraper
