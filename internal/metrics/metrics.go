// Package metrics collects node telemetry. It wraps Prometheus collectors
// for transaction execution, the event log, fee flows and the HTTP API.
package metrics

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the node's Prometheus collectors on a private registry.
type Collector struct {
	registry *prometheus.Registry

	// Execution metrics
	txTotal   *prometheus.CounterVec
	txLatency *prometheus.HistogramVec

	// Event log metrics
	eventsEmitted *prometheus.CounterVec
	eventLogSeq   prometheus.Gauge

	// Fee metrics
	feesCollected   prometheus.Counter
	feesDistributed prometheus.Counter

	// Keeper metrics
	keeperRuns *prometheus.CounterVec

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

// NewCollector creates the node metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "permnode"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.txTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "total",
			Help:      "Transactions submitted, labelled by outcome",
		},
		[]string{"result"},
	)
	c.txLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "duration_seconds",
			Help:      "Wall time spent executing a transaction",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"result"},
	)

	c.eventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Events appended to the log, labelled by name",
		},
		[]string{"name"},
	)
	c.eventLogSeq = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "log_seq",
			Help:      "Sequence number of the newest committed event",
		},
	)

	c.feesCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "collected_wei_total",
			Help:      "Native value collected through the fee gate",
		},
	)
	c.feesDistributed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "distributed_wei_total",
			Help:      "Native value paid out to distribution channels",
		},
	)

	c.keeperRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "runs_total",
			Help:      "Scheduled keeper duties, labelled by duty and outcome",
		},
		[]string{"duty", "result"},
	)

	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)
	c.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	c.httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight",
			Help:      "HTTP requests currently being served",
		},
	)

	c.registry.MustRegister(
		c.txTotal, c.txLatency,
		c.eventsEmitted, c.eventLogSeq,
		c.feesCollected, c.feesDistributed,
		c.keeperRuns,
		c.httpRequests, c.httpLatency, c.httpInFlight,
	)
	return c
}

// Registry exposes the underlying registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordTx records one transaction execution.
func (c *Collector) RecordTx(duration time.Duration, err error) {
	result := "committed"
	if err != nil {
		result = "reverted"
	}
	c.txTotal.WithLabelValues(result).Inc()
	c.txLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordEvent records one committed event.
func (c *Collector) RecordEvent(name string, seq uint64) {
	c.eventsEmitted.WithLabelValues(name).Inc()
	c.eventLogSeq.Set(float64(seq))
}

// RecordFeeCollected adds a fee payment to the running total. Precision
// above float64 is lost in the metric; exact totals live in the event log.
func (c *Collector) RecordFeeCollected(amount *big.Int) {
	c.feesCollected.Add(bigToFloat(amount))
}

// RecordFeeDistributed adds a channel payout to the running total.
func (c *Collector) RecordFeeDistributed(amount *big.Int) {
	c.feesDistributed.Add(bigToFloat(amount))
}

// RecordKeeperRun records one scheduled duty execution.
func (c *Collector) RecordKeeperRun(duty string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.keeperRuns.WithLabelValues(duty, result).Inc()
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, path, status).Inc()
	c.httpLatency.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementInFlight marks a request as started.
func (c *Collector) IncrementInFlight() { c.httpInFlight.Inc() }

// DecrementInFlight marks a request as finished.
func (c *Collector) DecrementInFlight() { c.httpInFlight.Dec() }

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
