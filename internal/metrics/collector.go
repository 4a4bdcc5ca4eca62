// If you are AI: This file implements the prometheus collector for streaming metrics.
// Each Collector owns its registry so tests and multiple instances never collide.

package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bwstream/internal/core/transport"
)

// Transport labels.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// Collector records ingest, push and profile metrics.
// Lock expectations: all methods are safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	framesReceived *prometheus.CounterVec
	bytesReceived  *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	connections    *prometheus.GaugeVec

	framesSent    *prometheus.CounterVec
	sendRejected  *prometheus.CounterVec
	profileLevel  prometheus.Gauge
	profileThresh prometheus.Gauge

	namespace  string
	throughput map[string]prometheus.Collector
	mu         sync.Mutex
	logger     *zap.Logger
}

// NewCollector creates a collector with a fresh registry that also carries
// the Go runtime and process collectors.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry:   reg,
		namespace:  namespace,
		throughput: make(map[string]prometheus.Collector),
		logger:     logger.With(zap.String("component", "metrics")),
	}

	c.framesReceived = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_frames_total",
			Help:      "Total number of frames decoded by ingest connections",
		},
		[]string{"transport"},
	)

	c.bytesReceived = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_payload_bytes_total",
			Help:      "Total payload bytes decoded by ingest connections",
		},
		[]string{"transport"},
	)

	c.latency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_latency_seconds",
			Help:      "Time from sender timestamp to decode",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"transport"},
	)

	c.connections = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_connections",
			Help:      "Number of open ingest connections",
		},
		[]string{"transport"},
	)

	c.framesSent = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_frames_total",
			Help:      "Total number of frames accepted by push sinks",
		},
		[]string{"task"},
	)

	c.sendRejected = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_backpressure_total",
			Help:      "Times a push sink refused a frame because the transport was not ready",
		},
		[]string{"task"},
	)

	c.profileLevel = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "profile_level",
		Help:      "Index of the selected profile level",
	})

	c.profileThresh = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "profile_bandwidth_threshold",
		Help:      "Bandwidth threshold of the selected profile level",
	})

	return c
}

// Handler returns the /metrics handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RegisterThroughput exports a transport counter as a labelled counter.
// The counter is read at scrape time; nothing is copied on the write path.
func (c *Collector) RegisterThroughput(task string, counter *transport.Counter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.throughput[task]; ok {
		return fmt.Errorf("throughput for task %q already registered", task)
	}

	fn := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace:   c.namespace,
			Name:        "push_bytes_total",
			Help:        "Total bytes written to the transport by push sinks",
			ConstLabels: prometheus.Labels{"task": task},
		},
		func() float64 { return float64(counter.Load()) },
	)
	if err := c.registry.Register(fn); err != nil {
		return fmt.Errorf("register throughput for task %q: %w", task, err)
	}
	c.throughput[task] = fn
	return nil
}

// UnregisterThroughput removes a task's throughput counter.
func (c *Collector) UnregisterThroughput(task string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fn, ok := c.throughput[task]; ok {
		c.registry.Unregister(fn)
		delete(c.throughput, task)
	}
}

// RecordFrame records one decoded ingest frame.
// latency is observed only when the sender stamped the frame.
func (c *Collector) RecordFrame(transportName string, payloadBytes int, latency time.Duration, stamped bool) {
	c.framesReceived.WithLabelValues(transportName).Inc()
	c.bytesReceived.WithLabelValues(transportName).Add(float64(payloadBytes))
	if stamped {
		c.latency.WithLabelValues(transportName).Observe(latency.Seconds())
	}
}

// ConnectionOpened increments the open connection gauge.
func (c *Collector) ConnectionOpened(transportName string) {
	c.connections.WithLabelValues(transportName).Inc()
}

// ConnectionClosed decrements the open connection gauge.
func (c *Collector) ConnectionClosed(transportName string) {
	c.connections.WithLabelValues(transportName).Dec()
}

// RecordSent records one frame accepted by a push sink.
func (c *Collector) RecordSent(task string) {
	c.framesSent.WithLabelValues(task).Inc()
}

// RecordBackpressure records one refused enqueue.
func (c *Collector) RecordBackpressure(task string) {
	c.sendRejected.WithLabelValues(task).Inc()
}

// ObserveLevel records the selected profile level and its threshold.
func (c *Collector) ObserveLevel(level int, bandwidth float64) {
	c.profileLevel.Set(float64(level))
	c.profileThresh.Set(bandwidth)
	c.logger.Debug("profile level observed",
		zap.Int("level", level),
		zap.Float64("bandwidth", bandwidth),
	)
}
