package shipper

import (
	"github.com/relaxlab/qexp/agent/internal/compute"
	"github.com/relaxlab/qexp/pkg/types"
)

// toSnapshot converts a compute.Result into the wire record sent to
// qexp-server. Fit parameters stay zero when the result carries no fit.
func toSnapshot(r *compute.Result) *types.FitSnapshot {
	snap := &types.FitSnapshot{
		SourceID:      r.SourceID,
		SourceType:    r.SourceType,
		Qubit:         r.Qubit,
		TimestampUnix: r.Timestamp.Unix(),
		State:         r.State,
		Points:        r.Points,
		MaxDelay:      r.MaxDelay,
		QualityScore:  r.QualityScore,
		UptimePct:     r.UptimePct,
		ErrorMessage:  r.ErrorMessage,
	}
	if f := r.Fit; f != nil {
		snap.Amplitude = f.Amplitude
		snap.DecayConstant = f.DecayConstant
		snap.Offset = f.Offset
		snap.DecayConstantStderr = f.DecayConstantStderr
		snap.ResidualSumSquares = f.ResidualSumSquares
	}
	return snap
}
