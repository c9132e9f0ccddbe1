// Package decay fits a single-exponential relaxation curve
//
//	P(t) = A·exp(−t/T) + B
//
// to a set of (delay, probability) observations by nonlinear least squares
// and reports the decay constant T together with its standard error.
//
// Fit and FitSeries are pure functions: no state is kept between calls and
// they are safe for concurrent use. Failures are reported through three
// sentinel errors (ErrInvalidInput, ErrInsufficientData, ErrFitFailure) that
// callers match with errors.Is. The estimator never retries; picking another
// initial guess is the caller's decision.
package decay
