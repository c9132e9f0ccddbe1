package synth

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/relaxlab/qexp/pkg/decay"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func TestSweep_Shape(t *testing.T) {
	cfg := DefaultSweepConfig()
	samples, err := Sweep(cfg, 1)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(samples) != cfg.Points {
		t.Fatalf("len: got %d, want %d", len(samples), cfg.Points)
	}

	if samples[0].Delay != 0 {
		t.Errorf("first delay: got %g, want 0", samples[0].Delay)
	}
	if last := samples[len(samples)-1].Delay; !almostEqual(last, cfg.MaxDelay, 1e-18) {
		t.Errorf("last delay: got %g, want %g", last, cfg.MaxDelay)
	}
	for i, s := range samples {
		if s.Shots != cfg.Shots {
			t.Errorf("[%d] shots: got %d, want %d", i, s.Shots, cfg.Shots)
		}
		if s.Probability < 0 || s.Probability > 1 {
			t.Errorf("[%d] probability %g outside [0,1]", i, s.Probability)
		}
		if want := float64(s.Excited) / float64(s.Shots); !almostEqual(s.Probability, want, 1e-12) {
			t.Errorf("[%d] probability: got %g, want excited/shots %g", i, s.Probability, want)
		}
		if i > 0 && s.Delay <= samples[i-1].Delay {
			t.Errorf("[%d] delay %g not increasing", i, s.Delay)
		}
	}
}

func TestSweep_Deterministic(t *testing.T) {
	a, err := Sweep(DefaultSweepConfig(), 42)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	b, err := Sweep(DefaultSweepConfig(), 42)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different sweeps")
	}
}

func TestSweep_NoiselessPopulationTracksModel(t *testing.T) {
	cfg := DefaultSweepConfig()
	cfg.NoiseLevel = 0
	cfg.Shots = 1_000_000

	samples, err := Sweep(cfg, 7)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	for _, s := range samples {
		want := math.Exp(-s.Delay / cfg.T1)
		// Binomial sd at 1e6 shots is at most 5e-4.
		if !almostEqual(s.Probability, want, 3e-3) {
			t.Errorf("delay %g: got %g, want %g", s.Delay, s.Probability, want)
		}
	}
}

func TestSweep_FitRecoversT1(t *testing.T) {
	samples, err := Sweep(DefaultSweepConfig(), 2024)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	res, err := decay.Fit(Observations(samples), decay.DefaultOptions())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if rel := math.Abs(res.DecayConstant-DefaultT1) / DefaultT1; rel > 0.2 {
		t.Errorf("T1: got %g, want within 20%% of %g", res.DecayConstant, DefaultT1)
	}
	if res.DecayConstantStderr <= 0 {
		t.Errorf("stderr: got %g, want > 0", res.DecayConstantStderr)
	}
}

func TestSweep_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SweepConfig)
	}{
		{"zero t1", func(c *SweepConfig) { c.T1 = 0 }},
		{"zero max delay", func(c *SweepConfig) { c.MaxDelay = 0 }},
		{"two points", func(c *SweepConfig) { c.Points = 2 }},
		{"no shots", func(c *SweepConfig) { c.Shots = 0 }},
		{"negative noise", func(c *SweepConfig) { c.NoiseLevel = -0.1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultSweepConfig()
			tc.mutate(&cfg)
			if _, err := Sweep(cfg, 1); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err: got %v, want ErrInvalidConfig", err)
			}
		})
	}
}
