package readout

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNoShots is returned when the counts sum to zero.
	ErrNoShots = errors.New("readout: no shots")

	// ErrBadBitstring is returned for keys that are not made of '0' and '1',
	// or that are too short for the requested qubit.
	ErrBadBitstring = errors.New("readout: malformed bitstring")
)

// Total returns the number of shots in counts.
func Total(counts map[string]int) int {
	var n int
	for _, c := range counts {
		n += c
	}
	return n
}

// Probabilities normalizes counts to a distribution.
func Probabilities(counts map[string]int) (map[string]float64, error) {
	total := Total(counts)
	if total <= 0 {
		return nil, ErrNoShots
	}
	out := make(map[string]float64, len(counts))
	for b, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("readout: negative count %d for %q", c, b)
		}
		out[b] = float64(c) / float64(total)
	}
	return out, nil
}

// ExcitedProbability returns the fraction of shots in which qubit reads 1.
func ExcitedProbability(counts map[string]int, qubit int) (float64, error) {
	if qubit < 0 {
		return 0, fmt.Errorf("readout: negative qubit index %d", qubit)
	}
	total := Total(counts)
	if total <= 0 {
		return 0, ErrNoShots
	}
	var excited int
	for b, c := range counts {
		bit, err := bitAt(b, qubit)
		if err != nil {
			return 0, err
		}
		if bit {
			excited += c
		}
	}
	return float64(excited) / float64(total), nil
}

// QubitErrorRates returns ExcitedProbability for each listed qubit. Used when
// every qubit is expected in the ground state, so any excitation is an error.
func QubitErrorRates(counts map[string]int, qubits []int) (map[int]float64, error) {
	out := make(map[int]float64, len(qubits))
	for _, q := range qubits {
		p, err := ExcitedProbability(counts, q)
		if err != nil {
			return nil, err
		}
		out[q] = p
	}
	return out, nil
}

// CrosstalkRates returns max(0, operation[q] − reference[q]) for every qubit
// in operation. A qubit missing from reference has a zero baseline.
func CrosstalkRates(reference, operation map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(operation))
	for q, op := range operation {
		d := op - reference[q]
		if d < 0 {
			d = 0
		}
		out[q] = d
	}
	return out
}

// RateSummary is the spread of a set of per-qubit rates.
type RateSummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}

// Summarize returns the mean and sample standard deviation of rates.
// A single rate has zero deviation.
func Summarize(rates map[int]float64) RateSummary {
	if len(rates) == 0 {
		return RateSummary{}
	}
	qs := make([]int, 0, len(rates))
	for q := range rates {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	vals := make([]float64, len(qs))
	for i, q := range qs {
		vals[i] = rates[q]
	}
	if len(vals) == 1 {
		return RateSummary{Mean: vals[0], Count: 1}
	}
	mean, std := stat.MeanStdDev(vals, nil)
	return RateSummary{Mean: mean, StdDev: std, Count: len(vals)}
}

func bitAt(b string, qubit int) (bool, error) {
	if qubit >= len(b) {
		return false, fmt.Errorf("%w: %q has no qubit %d", ErrBadBitstring, b, qubit)
	}
	switch b[len(b)-1-qubit] {
	case '0':
		return false, nil
	case '1':
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrBadBitstring, b)
	}
}
