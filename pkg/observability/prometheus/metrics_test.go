package prometheus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fluxorio/workpool/pkg/core/concurrency"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserver_RecordsEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	obs := m.Observer("unit")

	obs.ItemSubmitted(3)
	obs.ItemSubmitted(4)
	obs.ItemRejected()
	obs.ItemStarted(5*time.Millisecond, 3)
	obs.ItemFinished(time.Millisecond, nil)
	obs.ItemStarted(time.Millisecond, 2)
	obs.ItemFinished(time.Millisecond, errors.New("panic"))
	obs.ItemsDiscarded(2)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"submitted", m.ItemsSubmitted.WithLabelValues("unit"), 2},
		{"rejected", m.ItemsRejected.WithLabelValues("unit"), 1},
		{"completed", m.ItemsCompleted.WithLabelValues("unit"), 1},
		{"panicked", m.ItemsPanicked.WithLabelValues("unit"), 1},
		{"discarded", m.ItemsDiscarded.WithLabelValues("unit"), 2},
		{"queue depth", m.QueueDepth.WithLabelValues("unit"), 0},
		{"active", m.ActiveItems.WithLabelValues("unit"), 0},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}

	if n := testutil.CollectAndCount(m.ItemDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestObserver_WithPool(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	pool, err := concurrency.NewWorkerPool(concurrency.WorkerPoolConfig{
		Name:     "sums",
		Workers:  4,
		Logger:   concurrency.NopLogger(),
		Observer: m.Observer("sums"),
	})
	if err != nil {
		t.Fatalf("NewWorkerPool() error = %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		pool.Submit(func() { wg.Done() })
	}
	wg.Wait()
	pool.Shutdown()
	pool.Submit(func() {})

	if got := testutil.ToFloat64(m.ItemsSubmitted.WithLabelValues("sums")); got != 50 {
		t.Errorf("submitted = %v, want 50", got)
	}
	if got := testutil.ToFloat64(m.ItemsCompleted.WithLabelValues("sums")); got != 50 {
		t.Errorf("completed = %v, want 50", got)
	}
	if got := testutil.ToFloat64(m.ItemsRejected.WithLabelValues("sums")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ActiveItems.WithLabelValues("sums")); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("sums")); got != 0 {
		t.Errorf("queue depth = %v, want 0", got)
	}
}

// slowSubmitObserver stalls before reporting a submission, which would let
// a stale depth overwrite a newer one if reports were not ordered by the pool
type slowSubmitObserver struct {
	concurrency.Observer
}

func (o slowSubmitObserver) ItemSubmitted(pending int) {
	time.Sleep(time.Millisecond)
	o.Observer.ItemSubmitted(pending)
}

func TestObserver_QueueDepthSettlesAtZero(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	for i := 0; i < 20; i++ {
		pool, err := concurrency.NewWorkerPool(concurrency.WorkerPoolConfig{
			Name:     "depth",
			Workers:  1,
			Logger:   concurrency.NopLogger(),
			Observer: slowSubmitObserver{m.Observer("depth")},
		})
		if err != nil {
			t.Fatalf("NewWorkerPool() error = %v", err)
		}
		pool.Submit(func() {})
		pool.Shutdown()

		if pool.Pending() != 0 {
			t.Fatalf("run %d: Pending() = %d, want 0", i, pool.Pending())
		}
		if got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("depth")); got != 0 {
			t.Fatalf("run %d: queue depth = %v, want 0", i, got)
		}
	}
}

func TestGetMetrics_Singleton(t *testing.T) {
	if GetMetrics() != GetMetrics() {
		t.Error("GetMetrics() should return the same instance")
	}
}
