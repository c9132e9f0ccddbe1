package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/relaxlab/qexp/agent/internal/config"
	"github.com/relaxlab/qexp/pkg/readout"
)

// FileRecord is one line of a sweep file. Either Probability or Counts must
// be set; Counts takes precedence and is reduced to the qubit's excited
// population.
type FileRecord struct {
	Qubit       int            `json:"qubit"`
	Delay       float64        `json:"delay"`
	Probability *float64       `json:"probability,omitempty"`
	Shots       int            `json:"shots,omitempty"`
	Counts      map[string]int `json:"counts,omitempty"`
}

// Point converts r into a sweep point.
func (r FileRecord) Point() (Point, error) {
	if r.Qubit < 0 {
		return Point{}, fmt.Errorf("negative qubit %d", r.Qubit)
	}
	if len(r.Counts) > 0 {
		p, err := readout.ExcitedProbability(r.Counts, r.Qubit)
		if err != nil {
			return Point{}, err
		}
		return Point{Delay: r.Delay, Probability: p, Shots: readout.Total(r.Counts)}, nil
	}
	if r.Probability == nil {
		return Point{}, fmt.Errorf("qubit %d delay %g: neither probability nor counts set", r.Qubit, r.Delay)
	}
	return Point{Delay: r.Delay, Probability: *r.Probability, Shots: r.Shots}, nil
}

// ReadSweepFile decodes a JSON array of FileRecord from path.
func ReadSweepFile(path string) ([]FileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sweep file: %w", err)
	}
	var recs []FileRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode sweep file %s: %w", path, err)
	}
	return recs, nil
}

// fileScraper re-reads a sweep file on every scrape so that an acquisition
// script can rewrite it in place.
type fileScraper struct {
	src config.Source
}

func (s *fileScraper) Scrape(_ context.Context) (*SweepResult, error) {
	res := newResult(s.src.ID, "file")

	recs, err := ReadSweepFile(s.src.Path)
	if err != nil {
		res.Err = fmt.Errorf("file scrape %q: %w", s.src.ID, err)
		slog.Warn("scraper: file read failed", "source", s.src.ID, "err", err)
		return res, nil
	}

	for i, rec := range recs {
		pt, err := rec.Point()
		if err != nil {
			res.Err = fmt.Errorf("file scrape %q: record %d: %w", s.src.ID, i, err)
			return res, nil
		}
		res.Qubits[rec.Qubit] = append(res.Qubits[rec.Qubit], pt)
	}

	sortPoints(res)
	return res, nil
}
