package scraper

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/relaxlab/qexp/agent/internal/config"
	"github.com/relaxlab/qexp/agent/internal/synth"
)

// syntheticScraper draws a fresh sweep for every configured qubit on each
// scrape. The n-th scrape of qubit q uses a seed derived from (Seed, n, q), so
// a run is reproducible.
type syntheticScraper struct {
	src   config.Source
	cfg   synth.SweepConfig
	count atomic.Uint64
}

func newSyntheticScraper(src config.Source) *syntheticScraper {
	s := src.Synthetic
	return &syntheticScraper{
		src: src,
		cfg: synth.SweepConfig{
			Amplitude:  s.Amplitude,
			T1:         s.T1,
			Offset:     s.Offset,
			MaxDelay:   s.MaxDelay,
			Points:     s.Points,
			Shots:      s.Shots,
			NoiseLevel: s.NoiseLevel,
		},
	}
}

func (s *syntheticScraper) Scrape(ctx context.Context) (*SweepResult, error) {
	res := newResult(s.src.ID, "synthetic")
	n := s.count.Add(1)

	for _, q := range s.src.Synthetic.Qubits {
		if err := ctx.Err(); err != nil {
			res.Err = fmt.Errorf("synthetic scrape %q: %w", s.src.ID, err)
			return res, nil
		}
		seed := s.src.Synthetic.Seed ^ (n << 16) ^ uint64(q)
		samples, err := synth.Sweep(s.cfg, seed)
		if err != nil {
			res.Err = fmt.Errorf("synthetic scrape %q: %w", s.src.ID, err)
			return res, nil
		}
		pts := make([]Point, len(samples))
		for i, smp := range samples {
			pts[i] = Point{Delay: smp.Delay, Probability: smp.Probability, Shots: smp.Shots}
		}
		res.Qubits[q] = pts
	}
	return res, nil
}
