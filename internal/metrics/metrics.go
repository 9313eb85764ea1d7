// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPDuration      *prometheus.HistogramVec
	MessagesSynced    prometheus.Counter
	MessagesDuplicate prometheus.Counter
	ReadReceipts      prometheus.Counter
	Invitations       *prometheus.CounterVec
	WSConnections     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tourchat",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		MessagesSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tourchat",
			Name:      "messages_synced_total",
			Help:      "Messages inserted by sync batches.",
		}),
		MessagesDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tourchat",
			Name:      "messages_duplicate_total",
			Help:      "Sync submissions that matched an existing (local id, sender) pair.",
		}),
		ReadReceipts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tourchat",
			Name:      "read_receipts_total",
			Help:      "Messages marked read.",
		}),
		Invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tourchat",
			Name:      "invitations_total",
			Help:      "Invitation transitions by outcome.",
		}, []string{"outcome"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tourchat",
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		m.HTTPDuration,
		m.MessagesSynced,
		m.MessagesDuplicate,
		m.ReadReceipts,
		m.Invitations,
		m.WSConnections,
	)
	return m
}

// Middleware records request latency labelled by the matched route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := c.Route().Path
		m.HTTPDuration.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Nil-safe recorders so services can run without metrics in tests.

func (m *Metrics) Synced(inserted, duplicates int) {
	if m == nil {
		return
	}
	m.MessagesSynced.Add(float64(inserted))
	m.MessagesDuplicate.Add(float64(duplicates))
}

func (m *Metrics) Read(n int) {
	if m == nil {
		return
	}
	m.ReadReceipts.Add(float64(n))
}

func (m *Metrics) Invitation(outcome string) {
	if m == nil {
		return
	}
	m.Invitations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.WSConnections.Set(float64(n))
}
