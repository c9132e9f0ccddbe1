package xeb

import (
	"errors"
	"fmt"
	"math"

	"github.com/relaxlab/qexp/pkg/readout"
)

var (
	// ErrEmptyDistribution is returned when either distribution has no mass.
	ErrEmptyDistribution = errors.New("xeb: empty distribution")

	// ErrQubitCount is returned for a qubit count outside [1, 62].
	ErrQubitCount = errors.New("xeb: invalid qubit count")
)

// maxQubits keeps 2^n representable without overflow.
const maxQubits = 62

// Linear returns Σ_b measured(b)·ideal(b). Bitstrings missing from either
// map contribute zero.
func Linear(ideal, measured map[string]float64) (float64, error) {
	if len(ideal) == 0 || len(measured) == 0 {
		return 0, ErrEmptyDistribution
	}
	var sum float64
	for b, p := range ideal {
		sum += p * measured[b]
	}
	return sum, nil
}

// Normalized returns 2^qubits·Linear − 1.
func Normalized(ideal, measured map[string]float64, qubits int) (float64, error) {
	if qubits < 1 || qubits > maxQubits {
		return 0, fmt.Errorf("%w: %d", ErrQubitCount, qubits)
	}
	l, err := Linear(ideal, measured)
	if err != nil {
		return 0, err
	}
	return math.Ldexp(l, qubits) - 1, nil
}

// FromCounts normalizes shot counts and returns the Linear score.
func FromCounts(ideal map[string]float64, counts map[string]int) (float64, error) {
	measured, err := readout.Probabilities(counts)
	if err != nil {
		return 0, fmt.Errorf("xeb: %w", err)
	}
	return Linear(ideal, measured)
}

// Score bundles both estimates for one measured distribution.
type Score struct {
	Linear     float64 `json:"linear"`
	Normalized float64 `json:"normalized"`
	Qubits     int     `json:"qubits"`
}

// Evaluate computes a Score from shot counts. When qubits is zero it is taken
// from the bitstring width of the ideal distribution, which must be uniform.
func Evaluate(ideal map[string]float64, counts map[string]int, qubits int) (Score, error) {
	if qubits == 0 {
		w, err := width(ideal)
		if err != nil {
			return Score{}, err
		}
		qubits = w
	}
	if qubits < 1 || qubits > maxQubits {
		return Score{}, fmt.Errorf("%w: %d", ErrQubitCount, qubits)
	}
	measured, err := readout.Probabilities(counts)
	if err != nil {
		return Score{}, fmt.Errorf("xeb: %w", err)
	}
	l, err := Linear(ideal, measured)
	if err != nil {
		return Score{}, err
	}
	return Score{Linear: l, Normalized: math.Ldexp(l, qubits) - 1, Qubits: qubits}, nil
}

// width returns the common bitstring length of the keys of dist.
func width(dist map[string]float64) (int, error) {
	w := -1
	for b := range dist {
		switch {
		case w < 0:
			w = len(b)
		case len(b) != w:
			return 0, fmt.Errorf("%w: mixed bitstring widths %d and %d", ErrQubitCount, w, len(b))
		}
	}
	if w < 0 {
		return 0, ErrEmptyDistribution
	}
	return w, nil
}
