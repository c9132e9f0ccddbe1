package types

import (
	"fmt"
	"time"
)

// Fit states. A snapshot is in exactly one of these.
const (
	// StateGood, StateSuspect and StatePoor come from the quality score.
	StateGood    = "good"
	StateSuspect = "suspect"
	StatePoor    = "poor"

	// StateFailed means the estimator rejected the sweep; ErrorMessage says why.
	StateFailed = "failed"

	// StateUnknown means there is not enough data yet, or the last scrape failed.
	StateUnknown = "unknown"
)

// FitSnapshot is one relaxation fit for one qubit of one source.
type FitSnapshot struct {
	SourceID      string `json:"source_id"`
	SourceType    string `json:"source_type"`
	Qubit         int    `json:"qubit"`
	TimestampUnix int64  `json:"timestamp_unix"`
	State         string `json:"state"`

	// Points is the number of distinct delays in the sweep; MaxDelay the
	// longest of them in seconds.
	Points   int     `json:"points"`
	MaxDelay float64 `json:"max_delay"`

	// Fit parameters, zero unless State is good, suspect or poor.
	Amplitude           float64 `json:"amplitude"`
	DecayConstant       float64 `json:"decay_constant"`
	Offset              float64 `json:"offset"`
	DecayConstantStderr float64 `json:"decay_constant_stderr"`
	ResidualSumSquares  float64 `json:"residual_sum_squares"`

	QualityScore float64 `json:"quality_score"`
	UptimePct    float64 `json:"uptime_pct"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// Key identifies the (source, qubit) pair.
func (s *FitSnapshot) Key() string {
	return Key(s.SourceID, s.Qubit)
}

// Key formats a store key.
func Key(sourceID string, qubit int) string {
	return fmt.Sprintf("%s/%d", sourceID, qubit)
}

// Timestamp returns TimestampUnix as a UTC time.
func (s *FitSnapshot) Timestamp() time.Time {
	return time.Unix(s.TimestampUnix, 0).UTC()
}

// T1Micros returns the decay constant in microseconds.
func (s *FitSnapshot) T1Micros() float64 {
	return s.DecayConstant * 1e6
}

// StderrPct returns the decay constant standard error as a percentage of the
// decay constant, or 0 when there is no fit.
func (s *FitSnapshot) StderrPct() float64 {
	if s.DecayConstant <= 0 {
		return 0
	}
	return s.DecayConstantStderr / s.DecayConstant * 100
}

// Fitted reports whether the snapshot carries fit parameters.
func (s *FitSnapshot) Fitted() bool {
	switch s.State {
	case StateGood, StateSuspect, StatePoor:
		return true
	}
	return false
}

// SendResponse acknowledges a shipped snapshot.
type SendResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}
