package xeb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaxlab/qexp/pkg/readout"
)

func TestLinear_IdenticalDistributions(t *testing.T) {
	ideal := map[string]float64{"00": 0.5, "11": 0.5}

	got, err := Linear(ideal, ideal)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)
}

func TestLinear_MissingBitstringsContributeZero(t *testing.T) {
	ideal := map[string]float64{"00": 0.7, "01": 0.3}
	measured := map[string]float64{"00": 0.5, "10": 0.5}

	got, err := Linear(ideal, measured)
	require.NoError(t, err)
	assert.InDelta(t, 0.35, got, 1e-12)
}

func TestLinear_Empty(t *testing.T) {
	_, err := Linear(nil, map[string]float64{"0": 1})
	assert.ErrorIs(t, err, ErrEmptyDistribution)

	_, err = Linear(map[string]float64{"0": 1}, map[string]float64{})
	assert.ErrorIs(t, err, ErrEmptyDistribution)
}

func TestNormalized_UniformNoiseScoresZero(t *testing.T) {
	ideal := map[string]float64{"00": 0.4, "01": 0.1, "10": 0.3, "11": 0.2}
	uniform := map[string]float64{"00": 0.25, "01": 0.25, "10": 0.25, "11": 0.25}

	got, err := Normalized(ideal, uniform, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0, got, 1e-12)
}

func TestNormalized_BadQubitCount(t *testing.T) {
	ideal := map[string]float64{"0": 1}
	_, err := Normalized(ideal, ideal, 0)
	assert.ErrorIs(t, err, ErrQubitCount)

	_, err = Normalized(ideal, ideal, 63)
	assert.ErrorIs(t, err, ErrQubitCount)
}

func TestFromCounts(t *testing.T) {
	ideal := map[string]float64{"0": 0.9, "1": 0.1}

	got, err := FromCounts(ideal, map[string]int{"0": 800, "1": 200})
	require.NoError(t, err)
	assert.InDelta(t, 0.74, got, 1e-12)

	_, err = FromCounts(ideal, nil)
	assert.ErrorIs(t, err, readout.ErrNoShots)
}

func TestEvaluate_InfersQubitCount(t *testing.T) {
	ideal := map[string]float64{"000": 0.5, "111": 0.5}

	s, err := Evaluate(ideal, map[string]int{"000": 512, "111": 512}, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Qubits)
	assert.InDelta(t, 0.5, s.Linear, 1e-12)
	assert.InDelta(t, 3.0, s.Normalized, 1e-12)
}

func TestEvaluate_MixedWidthsRejected(t *testing.T) {
	ideal := map[string]float64{"00": 0.25, "01": 0.25, "110": 0.5}
	counts := map[string]int{"00": 10, "110": 10}

	// Every call must fail, whichever key map iteration visits first.
	for i := 0; i < 20; i++ {
		_, err := Evaluate(ideal, counts, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrQubitCount)
	}

	// An explicit count skips inference.
	s, err := Evaluate(ideal, counts, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Qubits)
}

func TestEvaluate_EmptyIdealWithoutCount(t *testing.T) {
	_, err := Evaluate(map[string]float64{}, map[string]int{"0": 1}, 0)
	assert.ErrorIs(t, err, ErrEmptyDistribution)
}
