package decay

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Damping schedule for Levenberg–Marquardt.
const (
	lambdaInitial = 1e-3
	lambdaMin     = 1e-12
	lambdaMax     = 1e16
	lambdaFactor  = 10.0

	// diagFloor keeps the Marquardt scaling positive when a Jacobian column
	// vanishes (e.g. the decay column when the amplitude reaches zero).
	diagFloor = 1e-15

	// maxCond is the largest acceptable condition number of JᵀJ at the
	// solution. Above it the parameters are not separately determined.
	maxCond = 1e13

	// residualFloor is the per-point squared residual treated as an exact fit.
	residualFloor = 1e-30
)

// problem holds the observations on a rescaled time axis. Delays are divided
// by scale (the initial decay constant) so all three parameters are O(1).
type problem struct {
	x []float64
	y []float64
}

// residuals writes y − f(x; q) into r and returns the sum of squares.
// q is (A, T/scale, B).
func (p *problem) residuals(q [3]float64, r []float64) float64 {
	var sse float64
	for i, x := range p.x {
		d := p.y[i] - (q[0]*math.Exp(-x/q[1]) + q[2])
		r[i] = d
		sse += d * d
	}
	return sse
}

// jacobian writes ∂f/∂q for every observation into j.
func (p *problem) jacobian(q [3]float64, j *mat.Dense) {
	for i, x := range p.x {
		e := math.Exp(-x / q[1])
		j.Set(i, 0, e)
		j.Set(i, 1, q[0]*e*x/(q[1]*q[1]))
		j.Set(i, 2, 1)
	}
}

func levenbergMarquardt(times, probabilities []float64, opts Options) (Result, error) {
	n := len(times)
	scale := opts.Initial.DecayConstant

	p := &problem{x: make([]float64, n), y: probabilities}
	for i, t := range times {
		p.x[i] = t / scale
	}

	q := [3]float64{opts.Initial.Amplitude, 1, opts.Initial.Offset}
	r := make([]float64, n)
	trialR := make([]float64, n)
	rv := mat.NewVecDense(n, r)
	j := mat.NewDense(n, 3, nil)

	sse := p.residuals(q, r)
	if !isFinite(sse) {
		return Result{}, fmt.Errorf("%w: residuals at the initial guess are not finite", ErrFitFailure)
	}

	var (
		jtj       mat.SymDense
		grad      mat.VecDense
		step      mat.VecDense
		damped    = mat.NewSymDense(3, nil)
		lambda    = lambdaInitial
		converged bool
		iter      int
	)

	for iter = 0; iter < opts.MaxIterations; iter++ {
		if sse <= residualFloor*float64(n) {
			converged = true
			break
		}

		p.jacobian(q, j)
		jtj.SymOuterK(1, j.T())
		grad.MulVec(j.T(), rv)

		accepted := false
		for lambda <= lambdaMax {
			damped.CopySym(&jtj)
			for k := 0; k < 3; k++ {
				d := math.Max(jtj.At(k, k), diagFloor)
				damped.SetSym(k, k, jtj.At(k, k)+lambda*d)
			}

			var chol mat.Cholesky
			if !chol.Factorize(damped) {
				lambda *= lambdaFactor
				continue
			}
			if err := chol.SolveVecTo(&step, &grad); err != nil {
				lambda *= lambdaFactor
				continue
			}

			trial := [3]float64{q[0] + step.AtVec(0), q[1] + step.AtVec(1), q[2] + step.AtVec(2)}
			if trial[1] <= 0 {
				lambda *= lambdaFactor
				continue
			}
			trialSSE := p.residuals(trial, trialR)
			if !isFinite(trialSSE) || trialSSE >= sse {
				lambda *= lambdaFactor
				continue
			}

			stepNorm := mat.Norm(&step, 2)
			qNorm := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2])
			reduction := (sse - trialSSE) / sse

			q = trial
			copy(r, trialR)
			sse = trialSSE
			lambda = math.Max(lambda/lambdaFactor, lambdaMin)
			accepted = true

			if stepNorm <= opts.Tolerance*(qNorm+opts.Tolerance) || reduction <= opts.Tolerance {
				converged = true
			}
			break
		}

		// No damped step lowers the residual any further: the current point
		// is a minimum to working precision.
		if !accepted {
			converged = true
		}
		if converged {
			iter++
			break
		}
	}

	if !converged {
		return Result{}, fmt.Errorf("%w: no convergence after %d iterations", ErrFitFailure, opts.MaxIterations)
	}

	decay := q[1] * scale
	if !isFinite(decay) || decay <= 0 || !isFinite(q[0]) || !isFinite(q[2]) {
		return Result{}, fmt.Errorf("%w: fitted decay constant %g is not a positive finite value",
			ErrFitFailure, decay)
	}

	p.jacobian(q, j)
	jtj.SymOuterK(1, j.T())
	var chol mat.Cholesky
	if !chol.Factorize(&jtj) || chol.Cond() > maxCond {
		return Result{}, fmt.Errorf("%w: jacobian is singular at the solution", ErrFitFailure)
	}

	res := Result{
		Amplitude:          q[0],
		DecayConstant:      decay,
		Offset:             q[2],
		ResidualSumSquares: sse,
		DegreesOfFreedom:   n - 3,
		Iterations:         iter,
	}

	// Unweighted least squares: cov = inv(JᵀJ) · RSS / (n − 3).
	if res.DegreesOfFreedom > 0 {
		var cov mat.SymDense
		if err := chol.InverseTo(&cov); err == nil {
			s2 := sse / float64(res.DegreesOfFreedom)
			res.AmplitudeStderr = stderr(cov.At(0, 0) * s2)
			res.DecayConstantStderr = stderr(cov.At(1, 1)*s2) * scale
			res.OffsetStderr = stderr(cov.At(2, 2) * s2)
		}
	}
	return res, nil
}

// stderr returns sqrt(v), or zero when v is not a positive finite variance.
func stderr(v float64) float64 {
	if !isFinite(v) || v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
