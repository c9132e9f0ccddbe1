package compute

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/relaxlab/qexp/agent/internal/config"
	"github.com/relaxlab/qexp/agent/internal/scraper"
	"github.com/relaxlab/qexp/pkg/types"
)

// baseTime is a fixed reference point so all test timings are deterministic.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// tick returns baseTime advanced by n minutes.
func tick(n int) time.Time {
	return baseTime.Add(time.Duration(n) * time.Minute)
}

func testFit() config.FitConfig {
	return config.FitConfig{
		InitialAmplitude: 1,
		InitialDecay:     50e-6,
		MaxIterations:    10000,
		Tolerance:        1e-12,
		MinPoints:        3,
	}
}

func testQuality() config.QualityConfig {
	return config.QualityConfig{T1Min: 10e-6, T1Max: 200e-6, MaxRelativeStderr: 0.1}
}

func newTestEngine() *Engine {
	return NewEngine(testFit(), testQuality())
}

// curve returns noiseless points of exp(-t/t1) at the given delays.
func curve(t1 float64, delays ...float64) []scraper.Point {
	pts := make([]scraper.Point, len(delays))
	for i, d := range delays {
		pts[i] = scraper.Point{Delay: d, Probability: math.Exp(-d / t1), Shots: 2000}
	}
	return pts
}

// fullSweep is 21 delays over 0–200µs.
func fullSweep() []float64 {
	d := make([]float64, 21)
	for i := range d {
		d[i] = float64(i) * 10e-6
	}
	return d
}

// makeResult builds a successful SweepResult for one source.
func makeResult(id string, qubits map[int][]scraper.Point) *scraper.SweepResult {
	return &scraper.SweepResult{
		SourceID:   id,
		SourceType: "synthetic",
		ScrapedAt:  baseTime,
		Qubits:     qubits,
	}
}

func failedResult(id string) *scraper.SweepResult {
	return &scraper.SweepResult{SourceID: id, SourceType: "synthetic", Err: errors.New("down")}
}

func only(t *testing.T, out []*Result) *Result {
	t.Helper()
	if len(out) != 1 {
		t.Fatalf("results = %d, want 1", len(out))
	}
	return out[0]
}

func TestEngine_FullSweep_Good(t *testing.T) {
	e := newTestEngine()
	r := only(t, e.Process(makeResult("sim", map[int][]scraper.Point{0: curve(50e-6, fullSweep()...)}), tick(0)))

	if r.State != types.StateGood {
		t.Fatalf("State = %q, want good (err=%q score=%.1f)", r.State, r.ErrorMessage, r.QualityScore)
	}
	if r.Fit == nil {
		t.Fatal("Fit is nil for a good result")
	}
	if !almostEqual(r.Fit.DecayConstant, 50e-6, 50e-9) {
		t.Errorf("T1 = %g, want 50e-6", r.Fit.DecayConstant)
	}
	if r.Points != 21 || !almostEqual(r.MaxDelay, 200e-6, 1e-12) {
		t.Errorf("Points/MaxDelay = %d/%g", r.Points, r.MaxDelay)
	}
	if r.QualityScore < ThresholdGood {
		t.Errorf("QualityScore = %.2f", r.QualityScore)
	}
	if !r.Timestamp.Equal(tick(0)) {
		t.Errorf("Timestamp = %v", r.Timestamp)
	}
}

func TestEngine_TooFewPoints_Unknown(t *testing.T) {
	e := newTestEngine()
	r := only(t, e.Process(makeResult("sim", map[int][]scraper.Point{0: curve(50e-6, 0, 50e-6)}), tick(0)))

	if r.State != types.StateUnknown {
		t.Errorf("State = %q, want unknown", r.State)
	}
	if r.Points != 2 {
		t.Errorf("Points = %d, want 2", r.Points)
	}
	if r.Fit != nil {
		t.Error("Fit should be nil")
	}
}

func TestEngine_MergesAcrossScrapes(t *testing.T) {
	e := newTestEngine()

	first := only(t, e.Process(makeResult("sim", map[int][]scraper.Point{0: curve(50e-6, 0, 50e-6)}), tick(0)))
	if first.State != types.StateUnknown {
		t.Fatalf("first State = %q, want unknown", first.State)
	}

	second := only(t, e.Process(makeResult("sim", map[int][]scraper.Point{0: curve(50e-6, 100e-6, 150e-6)}), tick(1)))
	if second.Points != 4 {
		t.Errorf("Points = %d, want 4", second.Points)
	}
	if second.Fit == nil {
		t.Fatalf("second scrape should fit, state=%q err=%q", second.State, second.ErrorMessage)
	}
	if !almostEqual(second.Fit.DecayConstant, 50e-6, 50e-9) {
		t.Errorf("T1 = %g, want 50e-6", second.Fit.DecayConstant)
	}
}

func TestEngine_LatestPointPerDelayWins(t *testing.T) {
	e := newTestEngine()
	delays := fullSweep()

	e.Process(makeResult("sim", map[int][]scraper.Point{0: curve(30e-6, delays...)}), tick(0))
	r := only(t, e.Process(makeResult("sim", map[int][]scraper.Point{0: curve(60e-6, delays...)}), tick(1)))

	if r.Points != len(delays) {
		t.Errorf("Points = %d, want %d", r.Points, len(delays))
	}
	if r.Fit == nil || !almostEqual(r.Fit.DecayConstant, 60e-6, 60e-9) {
		t.Errorf("fit should track the latest sweep, got %+v", r.Fit)
	}
}

func TestEngine_FlatSweep_Failed(t *testing.T) {
	e := newTestEngine()
	flat := []scraper.Point{{Delay: 0, Probability: 0.5}, {Delay: 1e-5, Probability: 0.5}, {Delay: 2e-5, Probability: 0.5}}

	r := only(t, e.Process(makeResult("sim", map[int][]scraper.Point{0: flat}), tick(0)))
	if r.State != types.StateFailed {
		t.Errorf("State = %q, want failed", r.State)
	}
	if r.ErrorMessage == "" {
		t.Error("ErrorMessage should carry the estimator error")
	}
	if r.Fit != nil {
		t.Error("Fit should be nil for a failed result")
	}
}

func TestEngine_ScrapeFailure_KeepsQubitsUnknown(t *testing.T) {
	e := newTestEngine()
	e.Process(makeResult("sim", map[int][]scraper.Point{2: curve(50e-6, fullSweep()...)}), tick(0))

	r := only(t, e.Process(failedResult("sim"), tick(1)))
	if r.Qubit != 2 {
		t.Errorf("Qubit = %d, want 2", r.Qubit)
	}
	if r.State != types.StateUnknown {
		t.Errorf("State = %q, want unknown", r.State)
	}
	if r.ErrorMessage != "down" {
		t.Errorf("ErrorMessage = %q, want %q", r.ErrorMessage, "down")
	}
	if !almostEqual(r.UptimePct, 50, 0.01) {
		t.Errorf("UptimePct = %.2f, want 50", r.UptimePct)
	}

	// The merged sweep survives the failure.
	next := only(t, e.Process(makeResult("sim", map[int][]scraper.Point{}), tick(2)))
	if next.Fit == nil {
		t.Errorf("sweep should still fit after a failed scrape, state=%q", next.State)
	}
}

func TestEngine_ScrapeFailure_NoQubitsYet(t *testing.T) {
	e := newTestEngine()
	if out := e.Process(failedResult("sim"), tick(0)); len(out) != 0 {
		t.Errorf("results = %d, want 0", len(out))
	}
}

func TestEngine_ResultsOrderedByQubit(t *testing.T) {
	e := newTestEngine()
	out := e.Process(makeResult("sim", map[int][]scraper.Point{
		3: curve(40e-6, fullSweep()...),
		0: curve(50e-6, fullSweep()...),
		1: curve(60e-6, fullSweep()...),
	}), tick(0))

	if len(out) != 3 {
		t.Fatalf("results = %d, want 3", len(out))
	}
	for i, want := range []int{0, 1, 3} {
		if out[i].Qubit != want {
			t.Errorf("out[%d].Qubit = %d, want %d", i, out[i].Qubit, want)
		}
	}
}

func TestEngine_UptimePct_RollingWindow(t *testing.T) {
	e := newTestEngine()

	// Fill beyond the window size with failures.
	for i := 0; i < uptimeWindow+5; i++ {
		e.Process(failedResult("src"), tick(i))
	}

	sweep := map[int][]scraper.Point{0: curve(50e-6, fullSweep()...)}
	for i := 0; i < 5; i++ {
		e.Process(makeResult("src", sweep), tick(uptimeWindow+5+i))
	}
	last := only(t, e.Process(makeResult("src", sweep), tick(uptimeWindow+11)))

	// 14 failures + 6 successes in the last 20 scrapes.
	wantUptime := 6.0 / float64(uptimeWindow) * 100
	if !almostEqual(last.UptimePct, wantUptime, 0.5) {
		t.Errorf("UptimePct rolling = %.2f, want %.2f", last.UptimePct, wantUptime)
	}
}

func TestEngine_MultiSource_Independent(t *testing.T) {
	e := newTestEngine()

	e.Process(makeResult("a", map[int][]scraper.Point{0: curve(50e-6, fullSweep()...)}), tick(0))
	e.Process(failedResult("b"), tick(0))

	a := only(t, e.Process(makeResult("a", map[int][]scraper.Point{}), tick(1)))
	if a.UptimePct != 100 {
		t.Errorf("source a UptimePct = %.2f, want 100", a.UptimePct)
	}
	if b := e.Process(failedResult("b"), tick(1)); len(b) != 0 {
		t.Errorf("source b should have no qubits, got %d", len(b))
	}
}

func TestEngine_SetConfig_RaisesMinPoints(t *testing.T) {
	e := newTestEngine()
	pts := map[int][]scraper.Point{0: curve(50e-6, 0, 50e-6, 100e-6, 150e-6)}

	if r := only(t, e.Process(makeResult("sim", pts), tick(0))); r.Fit == nil {
		t.Fatalf("4 points should fit with min_points=3, state=%q", r.State)
	}

	fit := testFit()
	fit.MinPoints = 10
	e.SetConfig(fit, testQuality())

	r := only(t, e.Process(makeResult("sim", pts), tick(1)))
	if r.State != types.StateUnknown {
		t.Errorf("State = %q, want unknown after raising min_points", r.State)
	}
}

func TestEngine_Forget(t *testing.T) {
	e := newTestEngine()
	e.Process(makeResult("sim", map[int][]scraper.Point{0: curve(50e-6, fullSweep()...)}), tick(0))
	e.Forget("sim")

	if out := e.Process(failedResult("sim"), tick(1)); len(out) != 0 {
		t.Errorf("results after Forget = %d, want 0", len(out))
	}
}
