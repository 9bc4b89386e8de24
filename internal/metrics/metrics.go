// Package metrics exposes prometheus instrumentation for model operations.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ekisa-team/stylus/internal/errcat"
)

// Result label values.
const (
	ResultOK          = "ok"
	ResultInterrupted = "interrupted"
	ResultNotLoaded   = "not_loaded"
	ResultError       = "error"
)

const namespace = "stylus"

// Metrics holds the collectors of the process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	loads           *prometheus.CounterVec
	forwards        *prometheus.CounterVec
	forwardDuration *prometheus.HistogramVec
	loaded          prometheus.Gauge
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Model loads by model and result.",
		}, []string{"model_id", "result"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_forwards_total",
			Help:      "Inference calls by model and result.",
		}, []string{"model_id", "result"}),
		forwardDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_forward_duration_seconds",
			Help:      "Inference latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"model_id"}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models_loaded",
			Help:      "Models currently holding a loaded handle.",
		}),
	}

	m.registry.MustRegister(
		m.loads,
		m.forwards,
		m.forwardDuration,
		m.loaded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Result classifies err into a result label.
func Result(err error) string {
	if err == nil {
		return ResultOK
	}

	var e *errcat.Error
	if errors.As(err, &e) {
		switch e.Code {
		case errcat.DownloadInterrupted:
			return ResultInterrupted
		case errcat.ModuleNotLoaded:
			return ResultNotLoaded
		}
	}
	return ResultError
}

// ObserveLoad records the outcome of a load.
func (m *Metrics) ObserveLoad(modelID string, err error) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(modelID, Result(err)).Inc()
}

// ObserveForward records the outcome and latency of an inference call.
func (m *Metrics) ObserveForward(modelID string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.forwards.WithLabelValues(modelID, Result(err)).Inc()
	m.forwardDuration.WithLabelValues(modelID).Observe(elapsed.Seconds())
}

// SetLoaded sets the number of loaded models.
func (m *Metrics) SetLoaded(n int) {
	if m == nil {
		return
	}
	m.loaded.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
