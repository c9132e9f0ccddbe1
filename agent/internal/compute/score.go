package compute

import "github.com/relaxlab/qexp/pkg/types"

// Weight constants for the quality score formula.
// They must sum to 1.0.
const (
	weightPrecision    = 0.40
	weightPlausibility = 0.30
	weightCoverage     = 0.20
	weightUptime       = 0.10
)

// Thresholds that map a score to a fit state.
const (
	ThresholdGood    = 85.0
	ThresholdSuspect = 60.0
)

// coverageDecays is the number of decay constants a sweep must span to earn
// full coverage credit.
const coverageDecays = 3.0

// Input holds the values fed into the quality score formula.
type Input struct {
	// DecayConstant is the fitted T1 in seconds. Zero or negative means no fit.
	DecayConstant float64

	// RelativeStderr is stderr(T1)/T1.
	RelativeStderr float64

	// MaxRelativeStderr is the RelativeStderr at which the precision factor
	// reaches zero.
	MaxRelativeStderr float64

	// T1Min and T1Max bound the plausible decay constant, in seconds.
	// Both zero disables the plausibility check (full credit).
	T1Min float64
	T1Max float64

	// MaxDelay is the longest delay in the sweep, in seconds.
	MaxDelay float64

	// UptimePct is the percentage of recent scrape cycles that returned
	// valid data.
	UptimePct float64
}

// Output is the result of the quality score calculation.
type Output struct {
	// Score is the composite quality score in the range 0–100.
	Score float64

	// State is one of types.StateGood, StateSuspect, StatePoor or StateUnknown.
	State string

	// The four factor values (each 0–1) used to compute Score.
	PrecisionFactor    float64
	PlausibilityFactor float64
	CoverageFactor     float64
	UptimeFactor       float64
}

// Compute grades a fit.
//
//	score = (
//	    (1 - relStderr/maxRelStderr) * 0.40 +   // capped to [0, 1]
//	    plausibility                 * 0.30 +   // 1 inside [t1_min, t1_max]
//	    maxDelay/(3·T1)              * 0.20 +   // capped at 1
//	    uptime_pct/100               * 0.10
//	) * 100
//
// Outside the plausible range the plausibility factor falls off as
// T1/t1_min below it and t1_max/T1 above it.
func Compute(in Input) Output {
	if in.DecayConstant <= 0 {
		return Output{State: types.StateUnknown}
	}

	precision := 1.0
	if in.MaxRelativeStderr > 0 {
		precision = 1 - clamp01(in.RelativeStderr/in.MaxRelativeStderr)
	}

	plausibility := 1.0
	switch {
	case in.T1Min > 0 && in.DecayConstant < in.T1Min:
		plausibility = in.DecayConstant / in.T1Min
	case in.T1Max > 0 && in.DecayConstant > in.T1Max:
		plausibility = in.T1Max / in.DecayConstant
	}

	coverage := clamp01(in.MaxDelay / (coverageDecays * in.DecayConstant))
	uptime := clamp01(in.UptimePct / 100)

	score := (precision*weightPrecision +
		plausibility*weightPlausibility +
		coverage*weightCoverage +
		uptime*weightUptime) * 100

	return Output{
		Score:              score,
		State:              stateFromScore(score),
		PrecisionFactor:    precision,
		PlausibilityFactor: plausibility,
		CoverageFactor:     coverage,
		UptimeFactor:       uptime,
	}
}

// stateFromScore maps a numeric score to a named fit state.
func stateFromScore(score float64) string {
	switch {
	case score >= ThresholdGood:
		return types.StateGood
	case score >= ThresholdSuspect:
		return types.StateSuspect
	default:
		return types.StatePoor
	}
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
