package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pricer"

// Metrics holds the Prometheus collectors for prediction traffic.
type Metrics struct {
	registry *prometheus.Registry

	PredictionsTotal *prometheus.CounterVec
	RowsScoredTotal  *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	RequestsTotal    *prometheus.CounterVec
	ModelInfo        *prometheus.GaugeVec
}

// New creates the collectors on their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of successful prediction runs",
		}, []string{"mode"}),
		RowsScoredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_scored_total",
			Help:      "Total number of rows scored",
		}, []string{"mode"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of failed prediction runs by error kind",
		}, []string{"mode", "kind"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of prediction runs",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"mode"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "code"}),
		ModelInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_info",
			Help:      "Loaded model artifact",
		}, []string{"name", "version"}),
	}
}

// ObserveRun records a successful run of the given mode.
func (m *Metrics) ObserveRun(mode string, rows int, d time.Duration) {
	m.PredictionsTotal.WithLabelValues(mode).Inc()
	m.RowsScoredTotal.WithLabelValues(mode).Add(float64(rows))
	m.RunDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveError records a failed run.
func (m *Metrics) ObserveError(mode, kind string) {
	m.ErrorsTotal.WithLabelValues(mode, kind).Inc()
}

// ObserveRequest records a served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// SetModel marks the loaded model.
func (m *Metrics) SetModel(name, version string) {
	m.ModelInfo.Reset()
	m.ModelInfo.WithLabelValues(name, version).Set(1)
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
