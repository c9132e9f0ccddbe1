package compute

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/relaxlab/qexp/agent/internal/config"
	"github.com/relaxlab/qexp/agent/internal/scraper"
	"github.com/relaxlab/qexp/pkg/decay"
	"github.com/relaxlab/qexp/pkg/types"
)

// uptimeWindow is the number of recent scrape outcomes tracked for uptime %.
const uptimeWindow = 20

// Result is the fit and grade for one qubit of one source, ready to be handed
// to the shipper.
type Result struct {
	SourceID   string
	SourceType string
	Qubit      int
	Timestamp  time.Time
	State      string

	// Points is the number of distinct delays in the merged sweep.
	Points   int
	MaxDelay float64

	// Fit is nil unless State is good, suspect or poor.
	Fit *decay.Result

	QualityScore float64
	UptimePct    float64
	ErrorMessage string
}

// Engine keeps a merged sweep per (source, qubit) across scrape cycles and
// refits it after every scrape.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	states  map[string]*sourceState
	fit     config.FitConfig
	quality config.QualityConfig
}

// NewEngine returns a ready-to-use Engine.
func NewEngine(fit config.FitConfig, quality config.QualityConfig) *Engine {
	return &Engine{
		states:  make(map[string]*sourceState),
		fit:     fit,
		quality: quality,
	}
}

// SetConfig replaces the fit and quality settings used from the next
// Process call on. Accumulated sweeps are kept.
func (e *Engine) SetConfig(fit config.FitConfig, quality config.QualityConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fit = fit
	e.quality = quality
}

// Forget drops all state for sourceID. Used when a source is removed from
// the config.
func (e *Engine) Forget(sourceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, sourceID)
}

// Process merges a SweepResult into the per-qubit sweeps and returns one
// Result per qubit the source has ever reported, ordered by qubit.
//
// now is passed explicitly so callers (and tests) control the clock without
// sleeping. Use time.Now() in production.
//
// A failed scrape marks every known qubit of the source unknown. A qubit
// with fewer than min_points distinct delays is unknown. A sweep the
// estimator rejects is failed, with the estimator's message kept.
func (e *Engine) Process(res *scraper.SweepResult, now time.Time) []*Result {
	e.mu.Lock()
	st := e.stateFor(res.SourceID)
	success := res.Err == nil
	st.recordScrape(success)
	uptime := st.uptimePct()
	fitCfg, quality := e.fit, e.quality

	if success {
		for q, pts := range res.Qubits {
			st.qubit(q).merge(pts)
		}
	}

	jobs := make([]fitJob, 0, len(st.qubits))
	for q, qs := range st.qubits {
		jobs = append(jobs, fitJob{qubit: q, times: qs.times(), probs: qs.probs()})
	}
	e.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].qubit < jobs[j].qubit })

	if !success {
		slog.Warn("compute: scrape failed, marking unknown",
			"source", res.SourceID, "err", res.Err)
	}

	out := make([]*Result, 0, len(jobs))
	for _, job := range jobs {
		r := &Result{
			SourceID:   res.SourceID,
			SourceType: res.SourceType,
			Qubit:      job.qubit,
			Timestamp:  now,
			Points:     len(job.times),
			MaxDelay:   maxOf(job.times),
			UptimePct:  uptime,
		}
		out = append(out, r)

		if !success {
			r.State = types.StateUnknown
			r.ErrorMessage = res.Err.Error()
			continue
		}
		if len(job.times) < fitCfg.MinPoints {
			r.State = types.StateUnknown
			continue
		}

		fit, err := decay.FitSeries(job.times, job.probs, fitCfg.Options())
		if err != nil {
			if errors.Is(err, decay.ErrInsufficientData) {
				r.State = types.StateUnknown
			} else {
				r.State = types.StateFailed
			}
			r.ErrorMessage = err.Error()
			slog.Warn("compute: fit rejected",
				"source", res.SourceID, "qubit", job.qubit, "points", r.Points, "err", err)
			continue
		}

		score := Compute(Input{
			DecayConstant:     fit.DecayConstant,
			RelativeStderr:    fit.RelativeStderr(),
			MaxRelativeStderr: quality.MaxRelativeStderr,
			T1Min:             quality.T1Min,
			T1Max:             quality.T1Max,
			MaxDelay:          r.MaxDelay,
			UptimePct:         uptime,
		})
		r.Fit = &fit
		r.State = score.State
		r.QualityScore = score.Score
	}
	return out
}

type fitJob struct {
	qubit int
	times []float64
	probs []float64
}

// sourceState holds per-source sweeps and uptime history.
type sourceState struct {
	qubits  map[int]*qubitState
	history []bool // scrape outcomes, newest last
}

// qubitState is the merged sweep of one qubit: the latest point per delay.
type qubitState struct {
	points map[float64]scraper.Point
}

func (e *Engine) stateFor(id string) *sourceState {
	if st, ok := e.states[id]; ok {
		return st
	}
	st := &sourceState{qubits: make(map[int]*qubitState)}
	e.states[id] = st
	return st
}

func (st *sourceState) qubit(q int) *qubitState {
	if qs, ok := st.qubits[q]; ok {
		return qs
	}
	qs := &qubitState{points: make(map[float64]scraper.Point)}
	st.qubits[q] = qs
	return qs
}

func (st *sourceState) recordScrape(success bool) {
	if len(st.history) >= uptimeWindow {
		st.history = st.history[1:]
	}
	st.history = append(st.history, success)
}

func (st *sourceState) uptimePct() float64 {
	if len(st.history) == 0 {
		return 100 // assume up before first observation
	}
	var ok int
	for _, s := range st.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(st.history)) * 100
}

func (qs *qubitState) merge(pts []scraper.Point) {
	for _, p := range pts {
		qs.points[p.Delay] = p
	}
}

// times returns the merged delays in ascending order.
func (qs *qubitState) times() []float64 {
	ts := make([]float64, 0, len(qs.points))
	for d := range qs.points {
		ts = append(ts, d)
	}
	sort.Float64s(ts)
	return ts
}

// probs returns the probabilities matching times().
func (qs *qubitState) probs() []float64 {
	ts := qs.times()
	ps := make([]float64, len(ts))
	for i, d := range ts {
		ps[i] = qs.points[d].Probability
	}
	return ps
}

func maxOf(v []float64) float64 {
	var m float64
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}
