// Package metrics exposes queue and storage activity as Prometheus metrics.
//
// A Collector is both a queue.Observer and a pebble MetricsHook, and it
// implements prometheus.Collector so one registration covers everything:
//
//	c := metrics.NewCollector("pqueue")
//	prometheus.MustRegister(c)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector tracks queue operations and storage latencies.
type Collector struct {
	ops          *prometheus.CounterVec
	storageTime  *prometheus.HistogramVec
	storageBytes *prometheus.CounterVec
	batchOps     prometheus.Histogram
}

// NewCollector builds an unregistered collector whose metric names are
// prefixed with namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_operations_total",
			Help:      "Queue items affected per operation.",
		}, []string{"kind", "queue", "op"}),
		storageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_duration_seconds",
			Help:      "Latency of storage reads, writes and batch commits.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"op"}),
		storageBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_bytes_total",
			Help:      "Bytes moved through storage.",
		}, []string{"op"}),
		batchOps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_batch_ops",
			Help:      "Operations per committed batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// ObserveOp counts n items affected by op on the named queue.
func (c *Collector) ObserveOp(kind, queue, op string, n int) {
	c.ops.WithLabelValues(kind, queue, op).Add(float64(n))
}

func (c *Collector) ObserveWrite(elapsed time.Duration, bytes int) {
	c.storageTime.WithLabelValues("write").Observe(elapsed.Seconds())
	c.storageBytes.WithLabelValues("write").Add(float64(bytes))
}

func (c *Collector) ObserveRead(elapsed time.Duration, bytes int) {
	c.storageTime.WithLabelValues("read").Observe(elapsed.Seconds())
	c.storageBytes.WithLabelValues("read").Add(float64(bytes))
}

func (c *Collector) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	c.storageTime.WithLabelValues("commit").Observe(elapsed.Seconds())
	c.storageBytes.WithLabelValues("commit").Add(float64(bytes))
	c.batchOps.Observe(float64(numOps))
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.ops.Describe(ch)
	c.storageTime.Describe(ch)
	c.storageBytes.Describe(ch)
	c.batchOps.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.ops.Collect(ch)
	c.storageTime.Collect(ch)
	c.storageBytes.Collect(ch)
	c.batchOps.Collect(ch)
}
