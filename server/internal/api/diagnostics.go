package api

import (
	"fmt"
	"sort"

	"github.com/relaxlab/qexp/pkg/types"
)

// DiagnosticHint is one human-readable insight about a qubit's latest fit.
// Clients show Title as a chip and Detail on click.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// Thresholds used by the hints. They describe the measurement, not the
// agent's quality score.
const (
	stderrWarnPct     = 10
	stderrCriticalPct = 25
	coverageDecays    = 3
	lowContrast       = 0.5
	highOffset        = 0.2
)

// computeDiagnostics derives diagnostic hints from a snapshot.
// Diagnostics are ordered: critical first, then warnings, then info.
func computeDiagnostics(snap *types.FitSnapshot) []DiagnosticHint {
	var hints []DiagnosticHint

	// Scrape failure
	if snap.State == types.StateUnknown && snap.ErrorMessage != "" {
		return append(hints, DiagnosticHint{
			Key:   "scrape_failed",
			Level: "critical",
			Title: "Can't reach source",
			Detail: fmt.Sprintf(
				"The agent could not collect this sweep. Its last attempt failed with: %q. "+
					"Check that the instrument exporter or sweep file is reachable and that "+
					"credentials are correct. No new fits arrive until this is resolved.",
				snap.ErrorMessage,
			),
		})
	}

	// Fit rejected
	if snap.State == types.StateFailed {
		return append(hints, DiagnosticHint{
			Key:   "fit_failed",
			Level: "critical",
			Title: "Fit did not converge",
			Detail: fmt.Sprintf(
				"The decay fit was rejected: %q. The sweep may be flat (the qubit was not "+
					"excited), dominated by noise, or not exponential at all. Check the π-pulse "+
					"calibration and the delay range.",
				snap.ErrorMessage,
			),
		})
	}

	// Not enough delays yet
	if snap.State == types.StateUnknown {
		v := float64(snap.Points)
		return append(hints, DiagnosticHint{
			Key:   "warming_up",
			Level: "info",
			Title: "Collecting delays",
			Detail: fmt.Sprintf(
				"Only %d distinct delays have been measured so far. A fit needs at least "+
					"three; it will appear once the sweep has covered enough points.",
				snap.Points,
			),
			Value: &v,
		})
	}

	// Precision
	if pct := snap.StderrPct(); pct > stderrWarnPct {
		v := pct
		level := "warning"
		if pct > stderrCriticalPct {
			level = "critical"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "imprecise_t1",
			Level: level,
			Title: fmt.Sprintf("±%.0f%% on T1", pct),
			Detail: fmt.Sprintf(
				"The standard error of T1 is %.1f%% of its value. More shots per delay or "+
					"more delays in the sweep will tighten the estimate.",
				pct,
			),
			Value: &v,
		})
	}

	// Sweep coverage
	if snap.DecayConstant > 0 && snap.MaxDelay < coverageDecays*snap.DecayConstant {
		v := snap.MaxDelay / snap.DecayConstant
		hints = append(hints, DiagnosticHint{
			Key:   "short_sweep",
			Level: "warning",
			Title: "Sweep too short",
			Detail: fmt.Sprintf(
				"The longest delay is %.1f×T1. The offset is poorly constrained until the "+
					"sweep reaches about %d×T1 (%.0f µs here).",
				v, coverageDecays, coverageDecays*snap.T1Micros(),
			),
			Value: &v,
		})
	}

	// Contrast
	if snap.Amplitude < lowContrast {
		v := snap.Amplitude
		hints = append(hints, DiagnosticHint{
			Key:   "low_contrast",
			Level: "warning",
			Title: "Low contrast",
			Detail: fmt.Sprintf(
				"The fitted amplitude is only %.2f. An incomplete π pulse or poor readout "+
					"fidelity reduces contrast and inflates the T1 uncertainty.",
				snap.Amplitude,
			),
			Value: &v,
		})
	}

	// Residual population
	if snap.Offset > highOffset {
		v := snap.Offset
		hints = append(hints, DiagnosticHint{
			Key:   "high_offset",
			Level: "info",
			Title: "High baseline",
			Detail: fmt.Sprintf(
				"The population settles at %.2f instead of near zero. That points to "+
					"thermal excitation or readout misassignment.",
				snap.Offset,
			),
			Value: &v,
		})
	}

	// Uptime
	if snap.UptimePct > 0 && snap.UptimePct < 100 {
		v := snap.UptimePct
		level := "info"
		switch {
		case snap.UptimePct < 70:
			level = "critical"
		case snap.UptimePct < 90:
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "uptime",
			Level: level,
			Title: fmt.Sprintf("%.0f%% uptime", snap.UptimePct),
			Detail: fmt.Sprintf(
				"The source answered %.0f%% of the last 20 scrapes. Gaps delay new fits.",
				snap.UptimePct,
			),
			Value: &v,
		})
	}

	hints = append(hints, sourceTypeHints(snap)...)

	// All clear
	if len(hints) == 0 {
		score := snap.QualityScore
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: "ok",
			Title: "All clear",
			Detail: fmt.Sprintf(
				"T1 = %.1f µs with a quality score of %.0f/100. The sweep covers the decay "+
					"and the estimate is precise.",
				snap.T1Micros(), score,
			),
			Value: &score,
		})
	}

	sortHints(hints)
	return hints
}

// sourceTypeHints returns source-type-specific diagnostic hints.
func sourceTypeHints(snap *types.FitSnapshot) []DiagnosticHint {
	switch snap.SourceType {
	case "synthetic":
		return []DiagnosticHint{{
			Key:    "synthetic_source",
			Level:  "info",
			Title:  "Synthetic data",
			Detail: "This qubit is fed by the agent's generator, not by an instrument.",
		}}
	case "file":
		if snap.UptimePct < 100 {
			return []DiagnosticHint{{
				Key:    "file_read_tip",
				Level:  "info",
				Title:  "Check sweep file",
				Detail: "The sweep file could not always be read. Write it atomically (temp file then rename).",
			}}
		}
	}
	return nil
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

func sortHints(h []DiagnosticHint) {
	sort.SliceStable(h, func(i, j int) bool {
		return levelRank[h[i].Level] < levelRank[h[j].Level]
	})
}
