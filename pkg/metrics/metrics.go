// Package metrics exposes Prometheus metrics for the relay.
//
// Metrics:
//   - chatrelay_webhook_requests_total: webhook requests by outcome
//   - chatrelay_webhook_duration_seconds: end-to-end webhook latency
//   - chatrelay_upstream_duration_seconds: completion API latency by gateway
//   - chatrelay_upstream_failures_total: completion failures by gateway and status class
//   - chatrelay_conversations: conversations currently held in history
//   - chatrelay_conversations_evicted_total: conversations dropped for idleness
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatrelay"

// Webhook outcomes.
const (
	OutcomeSuccess        = "success"
	OutcomeAdapterFailure = "adapter_failure"
	OutcomeInternalError  = "internal_error"
)

// Collector owns the relay's metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  prometheus.Histogram
	upstreamDuration *prometheus.HistogramVec
	upstreamFailures *prometheus.CounterVec
	conversations    prometheus.GaugeFunc
	evicted          prometheus.Counter
}

// NewCollector registers the relay metrics on a fresh registry. conversations
// is sampled on every scrape for the conversations gauge; it may be nil.
func NewCollector(conversations func() float64) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if conversations == nil {
		conversations = func() float64 { return 0 }
	}

	// LLM latencies: 100ms to 30s
	latencyBuckets := []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}

	c := &Collector{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Webhook requests by outcome",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "End-to-end webhook handling latency in seconds",
			Buckets:   latencyBuckets,
		}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Completion API call latency in seconds",
			Buckets:   latencyBuckets,
		}, []string{"gateway"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Completion API failures by gateway and status",
		}, []string{"gateway", "status"}),
		conversations: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversations",
			Help:      "Conversations currently held in history",
		}, conversations),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_evicted_total",
			Help:      "Conversations dropped after being idle",
		}),
	}

	registry.MustRegister(
		c.requests,
		c.requestDuration,
		c.upstreamDuration,
		c.upstreamFailures,
		c.conversations,
		c.evicted,
	)

	return c
}

// RecordWebhook records one handled webhook request.
func (c *Collector) RecordWebhook(outcome string, duration time.Duration) {
	c.requests.WithLabelValues(outcome).Inc()
	c.requestDuration.Observe(duration.Seconds())
}

// RecordUpstream records one completion call. status is the upstream HTTP
// status of a failed call, 0 when unknown; success is false for failures.
func (c *Collector) RecordUpstream(gateway string, duration time.Duration, success bool, status int) {
	c.upstreamDuration.WithLabelValues(gateway).Observe(duration.Seconds())
	if success {
		return
	}

	label := "none"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	c.upstreamFailures.WithLabelValues(gateway, label).Inc()
}

// RecordEvictions counts conversations removed by the idle sweeper.
func (c *Collector) RecordEvictions(n int) {
	c.evicted.Add(float64(n))
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
