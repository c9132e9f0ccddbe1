// Package readout turns shot counts into populations.
//
// Bitstrings follow the usual little-endian convention: the rightmost
// character is qubit 0. Crosstalk rates compare per-qubit excitation under an
// operation against a reference run and are clamped at zero.
package readout
