package receiver

import (
	"context"
	"log/slog"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/relaxlab/qexp/pkg/transport"
	"github.com/relaxlab/qexp/pkg/types"
	"github.com/relaxlab/qexp/server/internal/alerts"
	"github.com/relaxlab/qexp/server/internal/metrics"
	"github.com/relaxlab/qexp/server/internal/store"
)

var _ transport.ResultServiceServer = (*Receiver)(nil)

// Receiver implements transport.ResultServiceServer.
// It validates each incoming FitSnapshot, stores it, evaluates alert rules
// and records metrics.
type Receiver struct {
	store   *store.Store
	alerts  *alerts.Engine
	metrics *metrics.Metrics
}

// New creates a Receiver that writes accepted snapshots to st. ae and m may
// be nil.
func New(st *store.Store, ae *alerts.Engine, m *metrics.Metrics) *Receiver {
	return &Receiver{store: st, alerts: ae, metrics: m}
}

// SendResult is the unary RPC handler called by qexp-agent instances.
// Authentication is enforced by the gRPC server interceptor before this is called.
func (r *Receiver) SendResult(_ context.Context, snap *types.FitSnapshot) (*types.SendResponse, error) {
	if reason, msg := validate(snap); reason != "" {
		if r.metrics != nil {
			r.metrics.ResultsRejected.WithLabelValues(reason).Inc()
		}
		slog.Debug("receiver: snapshot rejected", "reason", reason, "err", msg)
		return nil, status.Error(codes.InvalidArgument, msg)
	}

	r.store.Put(snap)
	if r.metrics != nil {
		r.metrics.ObserveSnapshot(snap)
	}
	if r.alerts != nil {
		r.alerts.Evaluate(snap)
	}

	slog.Debug("receiver: snapshot stored",
		"key", snap.Key(),
		"source_type", snap.SourceType,
		"state", snap.State,
		"t1_us", snap.T1Micros(),
		"score", snap.QualityScore,
	)

	return &types.SendResponse{Ok: true}, nil
}

// validate returns a metrics reason and message for a malformed snapshot, or
// empty strings when it is acceptable.
func validate(snap *types.FitSnapshot) (reason, msg string) {
	switch {
	case snap == nil:
		return "empty", "snapshot is required"
	case snap.SourceID == "":
		return "source_id", "source_id is required"
	case snap.Qubit < 0:
		return "qubit", "qubit must be non-negative"
	}
	switch snap.State {
	case types.StateGood, types.StateSuspect, types.StatePoor:
		for _, v := range []float64{snap.Amplitude, snap.DecayConstant, snap.Offset, snap.DecayConstantStderr} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return "fit", "fit parameters must be finite"
			}
		}
		if snap.DecayConstant <= 0 {
			return "fit", "decay_constant must be positive for a fitted state"
		}
	case types.StateFailed, types.StateUnknown:
	default:
		return "state", "unknown state " + snap.State
	}
	return "", ""
}
