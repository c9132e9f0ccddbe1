package scraper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/relaxlab/qexp/agent/internal/config"
	"github.com/relaxlab/qexp/pkg/decay"
)

const defaultScrapeTimeout = 10 * time.Second

// Point is one measured delay of a relaxation sweep.
type Point struct {
	// Delay is the wait before readout, in seconds.
	Delay float64

	// Probability is the measured excited-state population.
	Probability float64

	// Shots is the number of repetitions behind Probability. Zero if unknown.
	Shots int
}

// SweepResult is the normalized output of one scrape of a single source.
type SweepResult struct {
	SourceID   string
	SourceType string
	ScrapedAt  time.Time

	// Qubits maps qubit index to the points measured in this scrape.
	// Points are sorted by delay.
	Qubits map[int][]Point

	// Err is non-nil if the scrape itself failed (connectivity, auth, parse).
	// The compute engine reports every qubit of a failed source as unknown.
	Err error
}

// Observations returns the points for qubit as estimator inputs.
func (r *SweepResult) Observations(qubit int) []decay.Observation {
	pts := r.Qubits[qubit]
	obs := make([]decay.Observation, len(pts))
	for i, p := range pts {
		obs[i] = decay.Observation{Delay: p.Delay, Probability: p.Probability}
	}
	return obs
}

// Scraper is the common interface implemented by every measurement source.
type Scraper interface {
	Scrape(ctx context.Context) (*SweepResult, error)
}

// New returns the appropriate Scraper for the given source configuration.
// The HTTP client is built once and reused across scrape calls.
func New(src config.Source) (Scraper, error) {
	switch src.Type {
	case "prometheus":
		client, err := buildHTTPClient(src)
		if err != nil {
			return nil, fmt.Errorf("scraper %q: build http client: %w", src.ID, err)
		}
		return &promScraper{src: src, client: client}, nil
	case "file":
		return &fileScraper{src: src}, nil
	case "synthetic":
		return newSyntheticScraper(src), nil
	default:
		return nil, fmt.Errorf("scraper: unsupported type %q", src.Type)
	}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	src  config.Source
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.src.Auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.src.Auth.EffectiveHeader(), t.src.Auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.src.Auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.src.Auth.Username, t.src.Auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(src config.Source) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if src.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(src.Auth.CertFile, src.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if src.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(src.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", src.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			src:  src,
		},
		Timeout: defaultScrapeTimeout,
	}, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// metricValue returns the counter, gauge or untyped value of m.
func metricValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue(), true
	case m.Counter != nil:
		return m.Counter.GetValue(), true
	case m.Untyped != nil:
		return m.Untyped.GetValue(), true
	}
	return 0, false
}

// labelValue returns the value of the named label on m, or "" if absent.
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// newResult initialises an empty SweepResult.
func newResult(sourceID, sourceType string) *SweepResult {
	return &SweepResult{
		SourceID:   sourceID,
		SourceType: sourceType,
		ScrapedAt:  time.Now().UTC(),
		Qubits:     make(map[int][]Point),
	}
}

// sortPoints orders every qubit's points by delay.
func sortPoints(res *SweepResult) {
	for _, pts := range res.Qubits {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Delay < pts[j].Delay })
	}
}
