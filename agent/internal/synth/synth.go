package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/relaxlab/qexp/pkg/decay"
)

// ErrInvalidConfig is returned when a SweepConfig cannot produce a sweep.
var ErrInvalidConfig = errors.New("synth: invalid config")

// Defaults match a typical transmon relaxation experiment.
const (
	DefaultT1         = 50e-6
	DefaultMaxDelay   = 200e-6
	DefaultPoints     = 21
	DefaultShots      = 2000
	DefaultNoiseLevel = 0.02
)

// SweepConfig describes one generated sweep.
type SweepConfig struct {
	Amplitude float64 `json:"amplitude"`
	T1        float64 `json:"t1"`
	Offset    float64 `json:"offset"`
	MaxDelay  float64 `json:"max_delay"`
	Points    int     `json:"points"`
	Shots     int     `json:"shots"`

	// NoiseLevel is the standard deviation of the multiplicative Gaussian
	// noise applied before shot sampling. Zero disables it.
	NoiseLevel float64 `json:"noise_level"`
}

// DefaultSweepConfig returns A=1, T1=50µs, B=0, 21 delays over 0–200µs,
// 2000 shots, 2% noise.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Amplitude:  1,
		T1:         DefaultT1,
		MaxDelay:   DefaultMaxDelay,
		Points:     DefaultPoints,
		Shots:      DefaultShots,
		NoiseLevel: DefaultNoiseLevel,
	}
}

// Sample is one simulated measurement.
type Sample struct {
	Delay       float64 `json:"delay"`
	Probability float64 `json:"probability"`
	Excited     int     `json:"excited"`
	Shots       int     `json:"shots"`
}

// Observation converts s into an estimator input.
func (s Sample) Observation() decay.Observation {
	return decay.Observation{Delay: s.Delay, Probability: s.Probability}
}

// Observations converts a sweep into estimator inputs.
func Observations(samples []Sample) []decay.Observation {
	obs := make([]decay.Observation, len(samples))
	for i, s := range samples {
		obs[i] = s.Observation()
	}
	return obs
}

// Validate reports whether cfg can produce a sweep.
func (c SweepConfig) Validate() error {
	switch {
	case c.T1 <= 0 || math.IsInf(c.T1, 0) || math.IsNaN(c.T1):
		return fmt.Errorf("%w: t1 must be positive", ErrInvalidConfig)
	case c.MaxDelay <= 0:
		return fmt.Errorf("%w: max_delay must be positive", ErrInvalidConfig)
	case c.Points < decay.MinPoints:
		return fmt.Errorf("%w: need at least %d points", ErrInvalidConfig, decay.MinPoints)
	case c.Shots <= 0:
		return fmt.Errorf("%w: shots must be positive", ErrInvalidConfig)
	case c.NoiseLevel < 0:
		return fmt.Errorf("%w: noise_level must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Sweep generates a sweep from cfg. The same seed always yields the same
// samples.
func Sweep(cfg SweepConfig, seed uint64) ([]Sample, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	delays := floats.Span(make([]float64, cfg.Points), 0, cfg.MaxDelay)
	noise := distuv.Normal{Mu: 1, Sigma: cfg.NoiseLevel, Src: src}
	params := decay.Params{Amplitude: cfg.Amplitude, DecayConstant: cfg.T1, Offset: cfg.Offset}

	samples := make([]Sample, len(delays))
	for i, t := range delays {
		p := decay.Model(t, params)
		if cfg.NoiseLevel > 0 {
			p *= noise.Rand()
		}
		p = clamp(p)

		shots := distuv.Binomial{N: float64(cfg.Shots), P: p, Src: src}
		excited := int(shots.Rand())
		samples[i] = Sample{
			Delay:       t,
			Probability: float64(excited) / float64(cfg.Shots),
			Excited:     excited,
			Shots:       cfg.Shots,
		}
	}
	return samples, nil
}

func clamp(p float64) float64 {
	return math.Min(1, math.Max(0, p))
}
