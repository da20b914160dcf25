// Package metrics exposes Prometheus instrumentation for conversions,
// exports, model builds and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records depthmesh metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	conversionsTotal *prometheus.CounterVec
	exportsTotal     *prometheus.CounterVec
	buildDuration    *prometheus.HistogramVec
	lastTriangles    prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the collectors on reg under namespace. A nil reg
// uses the default Prometheus registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.conversionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversions that reached a status",
		},
		[]string{"status"},
	)
	c.exportsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Model exports by format and outcome",
		},
		[]string{"format", "result"},
	)
	c.buildDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_build_duration_seconds",
			Help:      "Mesh assembly duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"shape"},
	)
	c.lastTriangles = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_last_triangles",
			Help:      "Triangle count of the most recently assembled mesh",
		},
	)
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	return c
}

// RecordConversion counts a conversion reaching status.
func (c *Collector) RecordConversion(status string) {
	if c == nil {
		return
	}
	c.conversionsTotal.WithLabelValues(status).Inc()
}

// RecordExport counts an export attempt.
func (c *Collector) RecordExport(format string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.exportsTotal.WithLabelValues(format, result).Inc()
}

// ObserveBuild records the duration and size of a mesh assembly.
func (c *Collector) ObserveBuild(shape string, d time.Duration, triangles int) {
	if c == nil {
		return
	}
	c.buildDuration.WithLabelValues(shape).Observe(d.Seconds())
	c.lastTriangles.Set(float64(triangles))
	c.logger.Debug("model built", zap.String("shape", shape), zap.Duration("took", d), zap.Int("triangles", triangles))
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
