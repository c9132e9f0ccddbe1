// Package synth generates synthetic T1 relaxation sweeps: an exponential
// population curve with multiplicative Gaussian noise followed by binomial
// shot noise. The agent uses it as a measurement source for dry runs and the
// qexp CLI uses it to produce fixtures.
package synth
