package api

import (
	"github.com/relaxlab/qexp/pkg/decay"
	"github.com/relaxlab/qexp/pkg/readout"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	OverallScore float64 `json:"overall_score"`
	State        string  `json:"state"`
	QubitCount   int     `json:"qubit_count"`
	GoodCount    int     `json:"good_count"`
	SuspectCount int     `json:"suspect_count"`
	PoorCount    int     `json:"poor_count"`
	FailedCount  int     `json:"failed_count"`
	UnknownCount int     `json:"unknown_count"`
	AlertCount   int     `json:"alert_count"`
	MeanT1Us     float64 `json:"mean_t1_us"`
}

// QubitResponse is one qubit entry in GET /api/v1/qubits.
type QubitResponse struct {
	Key          string           `json:"key"`
	SourceID     string           `json:"source_id"`
	SourceType   string           `json:"source_type"`
	Qubit        int              `json:"qubit"`
	State        string           `json:"state"`
	T1Us         float64          `json:"t1_us"`
	T1StderrUs   float64          `json:"t1_stderr_us"`
	StderrPct    float64          `json:"stderr_pct"`
	Amplitude    float64          `json:"amplitude"`
	Offset       float64          `json:"offset"`
	RSS          float64          `json:"residual_sum_squares"`
	Points       int              `json:"points"`
	MaxDelayUs   float64          `json:"max_delay_us"`
	QualityScore float64          `json:"quality_score"`
	UptimePct    float64          `json:"uptime_pct"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Diagnostics  []DiagnosticHint `json:"diagnostics"`
	MeasuredAt   string           `json:"measured_at"` // RFC3339, agent clock
	LastSeen     string           `json:"last_seen"`   // RFC3339, server clock
}

// HistoryPoint is one retained fit of a qubit. The detail response lists
// them oldest first, ending with the current fit.
type HistoryPoint struct {
	T1Us         float64 `json:"t1_us"`
	T1StderrUs   float64 `json:"t1_stderr_us"`
	QualityScore float64 `json:"quality_score"`
	MeasuredAt   string  `json:"measured_at"`
}

// QubitDetailResponse is the payload for GET /api/v1/qubits/{source}/{qubit}.
type QubitDetailResponse struct {
	QubitResponse
	History []HistoryPoint `json:"history"`
	Drift   *DriftSummary  `json:"drift,omitempty"`
}

// DriftSummary describes how T1 moved across the retained history.
type DriftSummary struct {
	MeanT1Us   float64 `json:"mean_t1_us"`
	StdDevT1Us float64 `json:"std_dev_t1_us"`
	MinT1Us    float64 `json:"min_t1_us"`
	MaxT1Us    float64 `json:"max_t1_us"`
	Fits       int     `json:"fits"`
}

// SourceResponse summarizes all live qubits of one source.
type SourceResponse struct {
	SourceID     string         `json:"source_id"`
	SourceType   string         `json:"source_type"`
	QubitCount   int            `json:"qubit_count"`
	States       map[string]int `json:"states"`
	MeanT1Us     float64        `json:"mean_t1_us"`
	MeanScore    float64        `json:"mean_quality_score"`
	UptimePct    float64        `json:"uptime_pct"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the
// WebSocket stream.
type SnapshotResponse struct {
	Qubits      []QubitResponse `json:"qubits"`
	GeneratedAt string          `json:"generated_at"` // RFC3339
}

// FitRequest is the body of POST /api/v1/fit. Delays are in TimeUnit
// (default seconds); initial guesses and results are always in seconds.
// Fields left out of Initial take the fitter defaults.
type FitRequest struct {
	Delays        []float64     `json:"delays"`
	Probabilities []float64     `json:"probabilities"`
	TimeUnit      string        `json:"time_unit,omitempty"`
	Initial       *decay.Params `json:"initial,omitempty"`
	MaxIterations int           `json:"max_iterations,omitempty"`
	Tolerance     float64       `json:"tolerance,omitempty"`
}

// FitResponse is the payload for POST /api/v1/fit.
type FitResponse struct {
	decay.Result
	T1Us       float64 `json:"t1_us"`
	T1StderrUs float64 `json:"t1_stderr_us"`
	StderrPct  float64 `json:"stderr_pct"`
}

// XEBRequest is the body of POST /api/v1/xeb. Qubits may be omitted; it is
// then taken from the bitstring width of Ideal.
type XEBRequest struct {
	Ideal  map[string]float64 `json:"ideal"`
	Counts map[string]int     `json:"counts"`
	Qubits int                `json:"qubits,omitempty"`
}

// CrosstalkRequest is the body of POST /api/v1/crosstalk: readout counts of
// an idle reference run and of a run with an operation on one qubit.
type CrosstalkRequest struct {
	Reference map[string]int `json:"reference"`
	Operation map[string]int `json:"operation"`
	Qubits    []int          `json:"qubits"`
}

// CrosstalkResponse is the payload for POST /api/v1/crosstalk.
type CrosstalkResponse struct {
	Reference map[int]float64     `json:"reference"`
	Operation map[int]float64     `json:"operation"`
	Crosstalk map[int]float64     `json:"crosstalk"`
	Summary   readout.RateSummary `json:"summary"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
