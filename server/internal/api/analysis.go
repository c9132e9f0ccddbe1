package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/relaxlab/qexp/pkg/decay"
	"github.com/relaxlab/qexp/pkg/readout"
	"github.com/relaxlab/qexp/pkg/xeb"
)

// fit returns POST /api/v1/fit: an ad hoc decay fit of the posted sweep.
// Invalid or insufficient data is a 400; a fit that does not converge is a 422.
func (h *Handler) fit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req FitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	scale, err := timeScale(req.TimeUnit)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	delays := make([]float64, len(req.Delays))
	for i, d := range req.Delays {
		delays[i] = d * scale
	}
	opts := decay.Options{MaxIterations: req.MaxIterations, Tolerance: req.Tolerance}
	if req.Initial != nil {
		opts.Initial = *req.Initial
	}

	start := time.Now()
	res, err := decay.FitSeries(delays, req.Probabilities, opts)
	outcome := fitOutcome(err)
	if h.metrics != nil {
		h.metrics.ObserveFit(outcome, time.Since(start))
	}
	switch outcome {
	case "ok":
	case "failed":
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	default:
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := FitResponse{
		Result:     res,
		T1Us:       res.DecayConstant * 1e6,
		T1StderrUs: res.DecayConstantStderr * 1e6,
	}
	if res.DecayConstant > 0 {
		resp.StderrPct = res.RelativeStderr() * 100
	}
	jsonResp(w, http.StatusOK, resp)
}

// xeb returns POST /api/v1/xeb: linear and normalized cross-entropy scores.
func (h *Handler) xeb(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req XEBRequest
	if !decodeBody(w, r, &req) {
		return
	}
	score, err := xeb.Evaluate(req.Ideal, req.Counts, req.Qubits)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, score)
}

// crosstalk returns POST /api/v1/crosstalk: per-qubit excitation added by an
// operation over an idle reference run.
func (h *Handler) crosstalk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req CrosstalkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Qubits) == 0 {
		jsonErr(w, http.StatusBadRequest, "qubits is required")
		return
	}
	ref, err := readout.QubitErrorRates(req.Reference, req.Qubits)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "reference: "+err.Error())
		return
	}
	op, err := readout.QubitErrorRates(req.Operation, req.Qubits)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "operation: "+err.Error())
		return
	}
	ct := readout.CrosstalkRates(ref, op)
	jsonResp(w, http.StatusOK, CrosstalkResponse{
		Reference: ref,
		Operation: op,
		Crosstalk: ct,
		Summary:   readout.Summarize(ct),
	})
}

// fitOutcome classifies a fit error into a metrics label.
func fitOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, decay.ErrFitFailure):
		return "failed"
	case errors.Is(err, decay.ErrInsufficientData):
		return "insufficient"
	default:
		return "invalid"
	}
}

// timeScale returns the factor converting unit to seconds.
func timeScale(unit string) (float64, error) {
	switch unit {
	case "s", "":
		return 1, nil
	case "ms":
		return 1e-3, nil
	case "us", "µs":
		return 1e-6, nil
	case "ns":
		return 1e-9, nil
	}
	return 0, fmt.Errorf("unknown time_unit %q (want s, ms, us or ns)", unit)
}
