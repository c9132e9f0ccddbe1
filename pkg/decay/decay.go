package decay

import (
	"errors"
	"fmt"
	"math"
)

// Failure kinds returned by Fit and FitSeries. Errors are wrapped with detail,
// so compare with errors.Is.
var (
	// ErrInvalidInput: mismatched lengths, negative or non-finite delays,
	// non-finite probabilities, or an unusable initial guess.
	ErrInvalidInput = errors.New("decay: invalid input")

	// ErrInsufficientData: fewer than MinPoints distinct delays.
	ErrInsufficientData = errors.New("decay: insufficient data")

	// ErrFitFailure: the optimizer did not converge, the Jacobian is singular
	// at the solution, or the fitted decay constant is not a positive finite
	// number.
	ErrFitFailure = errors.New("decay: fit failure")
)

// MinPoints is the number of distinct delays needed to determine the three
// free parameters.
const MinPoints = 3

// Defaults for Options. The initial decay constant matches the relaxation
// times seen on superconducting qubits; override it for other systems.
const (
	DefaultAmplitude     = 1.0
	DefaultDecayConstant = 50e-6
	DefaultOffset        = 0.0
	DefaultMaxIterations = 10000
	DefaultTolerance     = 1e-12
)

// flatTolerance is the probability spread below which the data carries no
// decay information.
const flatTolerance = 1e-12

// Observation is one measured point of a relaxation sweep.
type Observation struct {
	// Delay is the wait time before measurement, in seconds. Must be >= 0.
	Delay float64 `json:"delay"`

	// Probability is the measured excited-state population. Expected in
	// [0, 1] but not clamped.
	Probability float64 `json:"probability"`
}

// Params are the three model parameters. Also used as the initial guess.
type Params struct {
	Amplitude     float64 `json:"amplitude" yaml:"amplitude"`
	DecayConstant float64 `json:"decay_constant" yaml:"decay_constant"`
	Offset        float64 `json:"offset" yaml:"offset"`
}

// Options controls the optimizer.
type Options struct {
	// Initial is the starting point. Each field is defaulted on its own:
	// a zero Amplitude becomes 1 and a zero DecayConstant becomes 50µs. A
	// zero Offset is already the default. A negative DecayConstant is
	// rejected with ErrInvalidInput.
	Initial Params

	// MaxIterations bounds the number of accepted-or-rejected
	// Levenberg–Marquardt iterations. Zero selects DefaultMaxIterations.
	MaxIterations int

	// Tolerance is the relative step and residual-reduction threshold used
	// to declare convergence. Zero selects DefaultTolerance.
	Tolerance float64
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Initial: Params{
			Amplitude:     DefaultAmplitude,
			DecayConstant: DefaultDecayConstant,
			Offset:        DefaultOffset,
		},
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	// A zero amplitude zeroes the T column of the Jacobian.
	if o.Initial.Amplitude == 0 {
		o.Initial.Amplitude = def.Initial.Amplitude
	}
	if o.Initial.DecayConstant == 0 {
		o.Initial.DecayConstant = def.Initial.DecayConstant
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = def.Tolerance
	}
	return o
}

// Result is the outcome of a successful fit.
type Result struct {
	Amplitude           float64 `json:"amplitude"`
	DecayConstant       float64 `json:"decay_constant"`
	Offset              float64 `json:"offset"`
	DecayConstantStderr float64 `json:"decay_constant_stderr"`

	// Standard errors of the other two parameters, zero when undetermined.
	AmplitudeStderr float64 `json:"amplitude_stderr"`
	OffsetStderr    float64 `json:"offset_stderr"`

	// ResidualSumSquares is Σ (p_i − P(t_i))² at the solution.
	ResidualSumSquares float64 `json:"residual_sum_squares"`

	// DegreesOfFreedom is the number of observations minus three.
	DegreesOfFreedom int `json:"degrees_of_freedom"`

	// Iterations is the number of optimizer iterations performed.
	Iterations int `json:"iterations"`
}

// Params returns the fitted parameters.
func (r Result) Params() Params {
	return Params{Amplitude: r.Amplitude, DecayConstant: r.DecayConstant, Offset: r.Offset}
}

// Eval returns the fitted curve at delay t.
func (r Result) Eval(t float64) float64 {
	return Model(t, r.Params())
}

// RelativeStderr returns DecayConstantStderr / DecayConstant.
func (r Result) RelativeStderr() float64 {
	if r.DecayConstant <= 0 {
		return math.Inf(1)
	}
	return r.DecayConstantStderr / r.DecayConstant
}

// Model evaluates A·exp(−t/T) + B.
func Model(t float64, p Params) float64 {
	return p.Amplitude*math.Exp(-t/p.DecayConstant) + p.Offset
}

// Fit fits the model to obs. The order of obs does not matter.
func Fit(obs []Observation, opts Options) (Result, error) {
	times := make([]float64, len(obs))
	probs := make([]float64, len(obs))
	for i, o := range obs {
		times[i] = o.Delay
		probs[i] = o.Probability
	}
	return FitSeries(times, probs, opts)
}

// FitSeries fits the model to paired delay and probability slices.
func FitSeries(times, probabilities []float64, opts Options) (Result, error) {
	if len(times) != len(probabilities) {
		return Result{}, fmt.Errorf("%w: %d delays but %d probabilities",
			ErrInvalidInput, len(times), len(probabilities))
	}
	opts = opts.withDefaults()
	if !isFinite(opts.Initial.DecayConstant) || opts.Initial.DecayConstant <= 0 {
		return Result{}, fmt.Errorf("%w: initial decay constant %g must be positive",
			ErrInvalidInput, opts.Initial.DecayConstant)
	}
	if !isFinite(opts.Initial.Amplitude) || !isFinite(opts.Initial.Offset) {
		return Result{}, fmt.Errorf("%w: initial guess is not finite", ErrInvalidInput)
	}

	distinct := make(map[float64]struct{}, len(times))
	for i, t := range times {
		if !isFinite(t) {
			return Result{}, fmt.Errorf("%w: delay[%d] is not finite", ErrInvalidInput, i)
		}
		if t < 0 {
			return Result{}, fmt.Errorf("%w: delay[%d] = %g is negative", ErrInvalidInput, i, t)
		}
		if !isFinite(probabilities[i]) {
			return Result{}, fmt.Errorf("%w: probability[%d] is not finite", ErrInvalidInput, i)
		}
		distinct[t] = struct{}{}
	}
	if len(distinct) < MinPoints {
		return Result{}, fmt.Errorf("%w: %d distinct delays, need %d",
			ErrInsufficientData, len(distinct), MinPoints)
	}

	if spread(probabilities) <= flatTolerance {
		return Result{}, fmt.Errorf("%w: probabilities are constant, decay is undetermined", ErrFitFailure)
	}

	return levenbergMarquardt(times, probabilities, opts)
}

func spread(v []float64) float64 {
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return hi - lo
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
