package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/relaxlab/qexp/pkg/types"
	"github.com/relaxlab/qexp/server/internal/alerts"
	"github.com/relaxlab/qexp/server/internal/metrics"
	"github.com/relaxlab/qexp/server/internal/store"
)

// maxBodyBytes bounds POST bodies on the analysis endpoints.
const maxBodyBytes = 4 << 20

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads fit state from the store and returns JSON responses.
type Handler struct {
	store   *store.Store
	alerts  *alerts.Engine
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// New creates a Handler wired to the given store and registers all routes.
// ae and m may be nil.
func New(st *store.Store, ae *alerts.Engine, m *metrics.Metrics) http.Handler {
	h := &Handler{store: st, alerts: ae, metrics: m, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/qubits", h.listQubits)
	h.mux.HandleFunc("/api/v1/qubits/", h.getQubit) // subtree, extracts {source}/{qubit}
	h.mux.HandleFunc("/api/v1/sources", h.sources)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/fit", h.fit)
	h.mux.HandleFunc("/api/v1/xeb", h.xeb)
	h.mux.HandleFunc("/api/v1/crosstalk", h.crosstalk)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: mean quality score and state counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{QubitCount: len(entries)}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.FiringCount()
	}

	var scores, t1s []float64
	for _, e := range entries {
		s := e.Snapshot
		switch s.State {
		case types.StateGood:
			resp.GoodCount++
		case types.StateSuspect:
			resp.SuspectCount++
		case types.StatePoor:
			resp.PoorCount++
		case types.StateFailed:
			resp.FailedCount++
		default:
			resp.UnknownCount++
		}
		if s.Fitted() {
			scores = append(scores, s.QualityScore)
			t1s = append(t1s, s.T1Micros())
		}
	}

	if len(scores) == 0 {
		resp.State = types.StateUnknown
		jsonResp(w, http.StatusOK, resp)
		return
	}
	resp.OverallScore = stat.Mean(scores, nil)
	resp.MeanT1Us = stat.Mean(t1s, nil)
	resp.State = stateFromScore(resp.OverallScore)
	jsonResp(w, http.StatusOK, resp)
}

// listQubits returns GET /api/v1/qubits, optionally filtered by ?source= and
// ?state=.
func (h *Handler) listQubits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	source := r.URL.Query().Get("source")
	state := r.URL.Query().Get("state")

	entries := h.store.List()
	out := make([]QubitResponse, 0, len(entries))
	for _, e := range entries {
		if source != "" && e.Snapshot.SourceID != source {
			continue
		}
		if state != "" && e.Snapshot.State != state {
			continue
		}
		out = append(out, toQubitResponse(e))
	}
	jsonResp(w, http.StatusOK, out)
}

// getQubit returns GET /api/v1/qubits/{source}/{qubit}: a single live qubit
// with its fit history.
func (h *Handler) getQubit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/qubits/"), "/")
	if key == "" {
		h.listQubits(w, r)
		return
	}
	i := strings.LastIndexByte(key, '/')
	if i <= 0 {
		jsonErr(w, http.StatusBadRequest, "want /api/v1/qubits/{source}/{qubit}")
		return
	}
	q, err := strconv.Atoi(key[i+1:])
	if err != nil || q < 0 {
		jsonErr(w, http.StatusBadRequest, "qubit must be a non-negative integer")
		return
	}

	e, ok := h.store.Get(types.Key(key[:i], q))
	// Stale entries are treated as not found.
	if !ok || time.Since(e.UpdatedAt) > h.store.TTL() {
		jsonErr(w, http.StatusNotFound, "qubit not found")
		return
	}

	resp := QubitDetailResponse{
		QubitResponse: toQubitResponse(e),
		History:       make([]HistoryPoint, 0, len(e.History)),
	}
	t1s := make([]float64, 0, len(e.History))
	for _, s := range e.History {
		resp.History = append(resp.History, HistoryPoint{
			T1Us:         s.T1Micros(),
			T1StderrUs:   s.DecayConstantStderr * 1e6,
			QualityScore: s.QualityScore,
			MeasuredAt:   s.Timestamp().Format(time.RFC3339),
		})
		t1s = append(t1s, s.T1Micros())
	}
	if len(t1s) > 1 {
		mean, std := stat.MeanStdDev(t1s, nil)
		resp.Drift = &DriftSummary{
			MeanT1Us:   mean,
			StdDevT1Us: std,
			MinT1Us:    floats.Min(t1s),
			MaxT1Us:    floats.Max(t1s),
			Fits:       len(t1s),
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// sources returns GET /api/v1/sources: live qubits grouped by source.
func (h *Handler) sources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type acc struct {
		resp        SourceResponse
		t1s, scores []float64
		uptimeTotal float64
	}
	var order []string
	bySource := map[string]*acc{}
	for _, e := range h.store.List() {
		s := e.Snapshot
		a, ok := bySource[s.SourceID]
		if !ok {
			a = &acc{resp: SourceResponse{SourceID: s.SourceID, SourceType: s.SourceType, States: map[string]int{}}}
			bySource[s.SourceID] = a
			order = append(order, s.SourceID)
		}
		a.resp.QubitCount++
		a.resp.States[s.State]++
		a.uptimeTotal += s.UptimePct
		if s.ErrorMessage != "" && s.State == types.StateUnknown {
			a.resp.ErrorMessage = s.ErrorMessage
		}
		if s.Fitted() {
			a.t1s = append(a.t1s, s.T1Micros())
			a.scores = append(a.scores, s.QualityScore)
		}
	}

	out := make([]SourceResponse, 0, len(order))
	for _, id := range order {
		a := bySource[id]
		if len(a.t1s) > 0 {
			a.resp.MeanT1Us = stat.Mean(a.t1s, nil)
			a.resp.MeanScore = stat.Mean(a.scores, nil)
		}
		a.resp.UptimePct = a.uptimeTotal / float64(a.resp.QubitCount)
		out = append(out, a.resp)
	}
	jsonResp(w, http.StatusOK, out)
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// snapshot returns GET /api/v1/snapshot: all live qubits in one document.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// BuildSnapshot assembles the snapshot document for all live qubits. Shared
// with the WebSocket hub.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	entries := st.List()
	qubits := make([]QubitResponse, 0, len(entries))
	for _, e := range entries {
		qubits = append(qubits, toQubitResponse(e))
	}
	return SnapshotResponse{
		Qubits:      qubits,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// decodeBody reads a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// stateFromScore converts a 0–100 score to a fit state.
// Mirrors the thresholds in agent/internal/compute.
func stateFromScore(score float64) string {
	switch {
	case score >= 85:
		return types.StateGood
	case score >= 60:
		return types.StateSuspect
	default:
		return types.StatePoor
	}
}

// toQubitResponse maps a store.Entry to its JSON representation.
func toQubitResponse(e *store.Entry) QubitResponse {
	s := e.Snapshot
	return QubitResponse{
		Key:          s.Key(),
		SourceID:     s.SourceID,
		SourceType:   s.SourceType,
		Qubit:        s.Qubit,
		State:        s.State,
		T1Us:         s.T1Micros(),
		T1StderrUs:   s.DecayConstantStderr * 1e6,
		StderrPct:    s.StderrPct(),
		Amplitude:    s.Amplitude,
		Offset:       s.Offset,
		RSS:          s.ResidualSumSquares,
		Points:       s.Points,
		MaxDelayUs:   s.MaxDelay * 1e6,
		QualityScore: s.QualityScore,
		UptimePct:    s.UptimePct,
		ErrorMessage: s.ErrorMessage,
		Diagnostics:  computeDiagnostics(s),
		MeasuredAt:   s.Timestamp().Format(time.RFC3339),
		LastSeen:     e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
