package prometheus

import (
	"sync"
	"time"

	"github.com/fluxorio/workpool/pkg/core/concurrency"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "workpool"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds the worker pool collectors. Every vector is labeled by pool name.
type Metrics struct {
	ItemsSubmitted *prometheus.CounterVec
	ItemsRejected  *prometheus.CounterVec
	ItemsCompleted *prometheus.CounterVec
	ItemsPanicked  *prometheus.CounterVec
	ItemsDiscarded *prometheus.CounterVec

	QueueDepth  *prometheus.GaugeVec
	ActiveItems *prometheus.GaugeVec

	ItemWait     *prometheus.HistogramVec
	ItemDuration *prometheus.HistogramVec
}

// GetMetrics returns the global metrics instance registered on DefaultRegistry
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates the collectors and registers them with registerer
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	factory := promauto.With(registerer)
	labels := []string{"pool"}

	return &Metrics{
		ItemsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workpool_items_submitted_total",
				Help: "Total number of work items accepted by Submit",
			},
			labels,
		),
		ItemsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workpool_items_rejected_total",
				Help: "Total number of Submit calls refused because the pool was stopped",
			},
			labels,
		),
		ItemsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workpool_items_completed_total",
				Help: "Total number of work items that returned normally",
			},
			labels,
		),
		ItemsPanicked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workpool_items_panicked_total",
				Help: "Total number of work items that panicked",
			},
			labels,
		),
		ItemsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workpool_items_discarded_total",
				Help: "Total number of queued work items dropped without running",
			},
			labels,
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "workpool_queue_depth",
				Help: "Number of queued work items not yet claimed by a worker",
			},
			labels,
		),
		ActiveItems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "workpool_active_items",
				Help: "Number of work items currently executing",
			},
			labels,
		),
		ItemWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workpool_item_wait_seconds",
				Help:    "Time work items spend queued before a worker claims them",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			labels,
		),
		ItemDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workpool_item_duration_seconds",
				Help:    "Work item execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			labels,
		),
	}
}

// Observer returns a concurrency.Observer that records events for one pool
func (m *Metrics) Observer(pool string) concurrency.Observer {
	return &poolObserver{
		submitted: m.ItemsSubmitted.WithLabelValues(pool),
		rejected:  m.ItemsRejected.WithLabelValues(pool),
		completed: m.ItemsCompleted.WithLabelValues(pool),
		panicked:  m.ItemsPanicked.WithLabelValues(pool),
		discarded: m.ItemsDiscarded.WithLabelValues(pool),
		depth:     m.QueueDepth.WithLabelValues(pool),
		active:    m.ActiveItems.WithLabelValues(pool),
		wait:      m.ItemWait.WithLabelValues(pool),
		duration:  m.ItemDuration.WithLabelValues(pool),
	}
}

// poolObserver holds curried collectors so the hot path skips label lookups
type poolObserver struct {
	submitted prometheus.Counter
	rejected  prometheus.Counter
	completed prometheus.Counter
	panicked  prometheus.Counter
	discarded prometheus.Counter
	depth     prometheus.Gauge
	active    prometheus.Gauge
	wait      prometheus.Observer
	duration  prometheus.Observer
}

func (o *poolObserver) ItemSubmitted(pending int) {
	o.submitted.Inc()
	o.depth.Set(float64(pending))
}

func (o *poolObserver) ItemRejected() {
	o.rejected.Inc()
}

func (o *poolObserver) ItemStarted(wait time.Duration, pending int) {
	o.active.Inc()
	o.depth.Set(float64(pending))
	o.wait.Observe(wait.Seconds())
}

func (o *poolObserver) ItemFinished(elapsed time.Duration, err error) {
	o.active.Dec()
	o.duration.Observe(elapsed.Seconds())
	if err != nil {
		o.panicked.Inc()
		return
	}
	o.completed.Inc()
}

func (o *poolObserver) ItemsDiscarded(n int) {
	o.discarded.Add(float64(n))
	o.depth.Set(0)
}
