package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/relaxlab/qexp/pkg/types"
)

const namespace = "qexp"

// Metrics holds every collector the server exports. Each Metrics has its own
// registry, so tests can create as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	ResultsReceived *prometheus.CounterVec
	ResultsRejected *prometheus.CounterVec
	FitsByState     *prometheus.CounterVec
	FitDuration     *prometheus.HistogramVec
	AlertEvents     *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	QubitT1         *prometheus.GaugeVec
	QubitQuality    *prometheus.GaugeVec

	grpc *grpc_prometheus.ServerMetrics
}

// New creates and registers all collectors, including Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ResultsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_received_total",
			Help:      "Fit snapshots accepted from agents.",
		}, []string{"source_type"}),
		ResultsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_rejected_total",
			Help:      "Fit snapshots rejected by validation.",
		}, []string{"reason"}),
		FitsByState: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fits_total",
			Help:      "Received fit snapshots by state.",
		}, []string{"state"}),
		FitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Duration of ad hoc decay fits served by the API.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"outcome"}),
		AlertEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_events_total",
			Help:      "Alert fire and resolve events.",
		}, []string{"rule", "state"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "REST API requests by status code.",
		}, []string{"code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "REST API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code"}),
		QubitT1: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "qubit_t1_seconds",
			Help:      "Latest fitted relaxation time per qubit.",
		}, []string{"source_id", "qubit"}),
		QubitQuality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "qubit_quality_score",
			Help:      "Latest fit quality score per qubit (0-100).",
		}, []string{"source_id", "qubit"}),
		grpc: grpc_prometheus.NewServerMetrics(),
	}
	m.grpc.EnableHandlingTimeHistogram()

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ResultsReceived,
		m.ResultsRejected,
		m.FitsByState,
		m.FitDuration,
		m.AlertEvents,
		m.HTTPRequests,
		m.HTTPDuration,
		m.QubitT1,
		m.QubitQuality,
		m.grpc,
	)
	return m
}

// Registry returns the private registry, for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// RegisterGauge exports fn as a gauge. Used for values owned elsewhere, such
// as store size or connected stream clients.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// ObserveSnapshot records one accepted agent snapshot.
func (m *Metrics) ObserveSnapshot(snap *types.FitSnapshot) {
	m.ResultsReceived.WithLabelValues(snap.SourceType).Inc()
	m.FitsByState.WithLabelValues(snap.State).Inc()
	if !snap.Fitted() {
		return
	}
	q := strconv.Itoa(snap.Qubit)
	m.QubitT1.WithLabelValues(snap.SourceID, q).Set(snap.DecayConstant)
	m.QubitQuality.WithLabelValues(snap.SourceID, q).Set(snap.QualityScore)
}

// ForgetQubit drops the per-qubit gauges for an evicted qubit.
func (m *Metrics) ForgetQubit(sourceID string, qubit int) {
	q := strconv.Itoa(qubit)
	m.QubitT1.DeleteLabelValues(sourceID, q)
	m.QubitQuality.DeleteLabelValues(sourceID, q)
}

// ObserveFit records the outcome and latency of an ad hoc fit.
func (m *Metrics) ObserveFit(outcome string, d time.Duration) {
	m.FitDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// GRPCUnaryInterceptor instruments the receiver's unary handlers.
func (m *Metrics) GRPCUnaryInterceptor() grpc.UnaryServerInterceptor {
	return m.grpc.UnaryServerInterceptor()
}

// InitializeGRPC pre-populates the gRPC metrics with zero values for every
// registered method. Call after services are registered on srv.
func (m *Metrics) InitializeGRPC(srv *grpc.Server) {
	m.grpc.InitializeMetrics(srv)
}

// HTTPMiddleware instruments handlers with request count and latency.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		code := strconv.Itoa(rec.status)
		m.HTTPRequests.WithLabelValues(code).Inc()
		m.HTTPDuration.WithLabelValues(code).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes connection takeover through for the WebSocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}
