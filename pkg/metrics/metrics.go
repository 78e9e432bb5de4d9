// Package metrics exposes csvbulk reader, writer and loader statistics as
// Prometheus metrics.
//
// # Overview
//
// A Collector implements csvfile.Observer, so it can be attached to any
// Reader or Writer:
//
//	reg := metrics.NewRegistry()
//	collector := metrics.NewCollector(reg, "csvbulk")
//	reader.SetObserver(collector)
//
//	http.Handle("/metrics", metrics.Handler(reg))
//
// Counters are updated with atomic operations; recording a row costs a few
// nanoseconds and never allocates.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ajitpratap0/csvbulk/pkg/csvfile"
)

// Collector records tokenizer and loader activity.
type Collector struct {
	rowsRead       prometheus.Counter
	linesRead      prometheus.Counter
	fieldsPerRow   prometheus.Histogram
	emptyLines     *prometheus.CounterVec
	multiLineCells prometheus.Counter
	rowsWritten    prometheus.Counter
	bytesWritten   prometheus.Counter
	rowsLoaded     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	throughput     *prometheus.GaugeVec
}

var _ csvfile.Observer = (*Collector)(nil)

// NewRegistry returns a registry holding the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewCollector creates the csvbulk metrics under namespace and registers them
// with reg. A nil reg leaves them unregistered. Registering twice with the
// same registry panics.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		rowsRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Rows returned by readers",
		}),
		linesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Physical lines consumed by returned rows",
		}),
		fieldsPerRow: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fields_per_row",
			Help:      "Number of fields in returned rows",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
		emptyLines: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_lines_total",
			Help:      "Empty lines seen by readers, by configured behavior",
		}, []string{"behavior"}),
		multiLineCells: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "multiline_rows_total",
			Help:      "Rows holding a quoted cell spanning several lines",
		}),
		rowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written by writers",
		}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Encoded bytes written by writers, before compression",
		}),
		rowsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows accepted by a database loader",
		}, []string{"target"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of csvbulk operations",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"operation", "status"}),
		throughput: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throughput_rows_per_second",
			Help:      "Rows per second over the last progress interval",
		}, []string{"operation"}),
	}
}

// ObserveRow implements csvfile.Observer.
func (c *Collector) ObserveRow(fields, lines int) {
	c.rowsRead.Inc()
	c.linesRead.Add(float64(lines))
	c.fieldsPerRow.Observe(float64(fields))
}

// ObserveEmptyLine implements csvfile.Observer.
func (c *Collector) ObserveEmptyLine(behavior csvfile.EmptyLineBehavior) {
	c.emptyLines.WithLabelValues(behavior.String()).Inc()
}

// ObserveMultiLineCell implements csvfile.Observer.
func (c *Collector) ObserveMultiLineCell() {
	c.multiLineCells.Inc()
}

// ObserveWrite implements csvfile.Observer.
func (c *Collector) ObserveWrite(_, bytes int) {
	c.rowsWritten.Inc()
	c.bytesWritten.Add(float64(bytes))
}

// ObserveLoad records rows accepted by a loader such as "postgres".
func (c *Collector) ObserveLoad(target string, rows int64) {
	c.rowsLoaded.WithLabelValues(target).Add(float64(rows))
}

// ObserveOperation records how long an operation took and whether it failed.
func (c *Collector) ObserveOperation(operation string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.duration.WithLabelValues(operation, status).Observe(d.Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Timer measures elapsed time.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks rows per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	gauge     prometheus.Gauge
}

// NewThroughputTracker creates a tracker reporting into the throughput gauge
// for operation. A nil Collector gives a tracker that only computes.
func (c *Collector) NewThroughputTracker(operation string) *ThroughputTracker {
	t := &ThroughputTracker{lastReset: time.Now()}
	if c != nil {
		t.gauge = c.throughput.WithLabelValues(operation)
	}
	return t
}

// Increment adds n to the row count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns rows per second since the last reset, updates the
// gauge and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	if t.gauge != nil {
		t.gauge.Set(throughput)
	}
	return throughput
}
