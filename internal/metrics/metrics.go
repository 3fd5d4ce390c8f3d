// Package metrics holds the Prometheus collectors for the prediction service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "predictor"

// Metrics is one set of collectors bound to its own registry.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	rows      *prometheus.CounterVec
	ready     prometheus.Gauge
	httpCodes *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Prediction requests by mode and outcome.",
		}, []string{"mode", "status", "error_type"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent in the prediction pipeline.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"mode"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_predicted_total",
			Help:      "Student rows that produced a prediction.",
		}, []string{"mode"}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_ready",
			Help:      "1 once the artifacts are loaded.",
		}),
		httpCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "HTTP responses by path and status code.",
		}, []string{"path", "code"}),
	}

	m.registry.MustRegister(
		m.requests, m.latency, m.rows, m.ready, m.httpCodes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePrediction records one pipeline call. errorType is empty on success.
func (m *Metrics) ObservePrediction(mode, errorType string, rows int, d time.Duration) {
	status := "ok"
	if errorType != "" {
		status = "error"
	} else {
		m.rows.WithLabelValues(mode).Add(float64(rows))
	}
	m.requests.WithLabelValues(mode, status, errorType).Inc()
	m.latency.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(path string, code int) {
	m.httpCodes.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

func (m *Metrics) SetReady(ready bool) {
	if ready {
		m.ready.Set(1)
		return
	}
	m.ready.Set(0)
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
