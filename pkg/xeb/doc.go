// Package xeb scores measured bitstring distributions against the ideal
// distribution of the same circuit (linear cross-entropy benchmarking).
//
// Linear returns Σ_b p_meas(b)·p_ideal(b). Normalized rescales it to the
// conventional fidelity estimate 2^n·Σ − 1, which is ~1 for a perfect device
// sampling a random circuit and ~0 for uniform noise.
package xeb
