package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	dto "github.com/prometheus/client_model/go"

	"github.com/relaxlab/qexp/agent/internal/config"
)

// Metric names exposed by an instrument exporter.
const (
	// Gauge: excited-state population measured at one delay.
	metricPopulation = "qubit_excited_population"

	// Counter: shots taken at one delay. Optional.
	metricShots = "qubit_shots_total"

	labelQubit = "qubit"
	labelDelay = "delay_seconds"
)

type promScraper struct {
	src    config.Source
	client *http.Client
}

type sample struct {
	qubit int
	delay float64
}

// Scrape fetches the exporter's /metrics endpoint and groups population
// samples by qubit. Series with unparseable labels are skipped.
func (s *promScraper) Scrape(ctx context.Context) (*SweepResult, error) {
	res := newResult(s.src.ID, "prometheus")

	mfs, err := fetchMetrics(ctx, s.client, s.src.Endpoint)
	if err != nil {
		res.Err = fmt.Errorf("prometheus scrape %q: %w", s.src.ID, err)
		slog.Warn("scraper: prometheus fetch failed", "source", s.src.ID, "err", err)
		return res, nil
	}

	pop := mfs[metricPopulation]
	if pop == nil {
		res.Err = fmt.Errorf("prometheus scrape %q: metric %s not exposed", s.src.ID, metricPopulation)
		return res, nil
	}

	shots := make(map[sample]int)
	if mf := mfs[metricShots]; mf != nil {
		for _, m := range mf.GetMetric() {
			key, ok := sampleKey(m, s.src.ID)
			if !ok {
				continue
			}
			if v, ok := metricValue(m); ok {
				shots[key] = int(v)
			}
		}
	}

	var skipped int
	for _, m := range pop.GetMetric() {
		key, ok := sampleKey(m, s.src.ID)
		if !ok {
			skipped++
			continue
		}
		v, ok := metricValue(m)
		if !ok || math.IsNaN(v) {
			skipped++
			continue
		}
		res.Qubits[key.qubit] = append(res.Qubits[key.qubit], Point{
			Delay:       key.delay,
			Probability: v,
			Shots:       shots[key],
		})
	}
	if skipped > 0 {
		slog.Warn("scraper: skipped malformed series", "source", s.src.ID, "count", skipped)
	}

	sortPoints(res)
	return res, nil
}

func sampleKey(m *dto.Metric, source string) (sample, bool) {
	qs, ds := labelValue(m, labelQubit), labelValue(m, labelDelay)
	q, err := strconv.Atoi(qs)
	if err != nil || q < 0 {
		slog.Debug("scraper: bad qubit label", "source", source, "value", qs)
		return sample{}, false
	}
	d, err := strconv.ParseFloat(ds, 64)
	if err != nil || d < 0 || math.IsInf(d, 0) || math.IsNaN(d) {
		slog.Debug("scraper: bad delay label", "source", source, "value", ds)
		return sample{}, false
	}
	return sample{qubit: q, delay: d}, true
}
