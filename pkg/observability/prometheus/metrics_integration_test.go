package prometheus_test

import (
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/fluxorio/workpool/pkg/core/concurrency"
	"github.com/fluxorio/workpool/pkg/observability/prometheus"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp/fasthttputil"
)

// TestMetricsEndpoint_Integration scrapes /metrics after running a pool.
// A private registry keeps the totals exact across repeated runs.
func TestMetricsEndpoint_Integration(t *testing.T) {
	reg := promclient.NewRegistry()
	metrics := prometheus.NewMetrics(promclient.WrapRegistererWith(promclient.Labels{"service": "workpool"}, reg))

	pool, err := concurrency.NewWorkerPool(concurrency.WorkerPoolConfig{
		Name:     "integration",
		Workers:  2,
		Logger:   concurrency.NopLogger(),
		Observer: metrics.Observer("integration"),
	})
	if err != nil {
		t.Fatalf("NewWorkerPool() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		pool.Submit(func() {})
	}
	pool.Submit(func() { panic("scraped") })
	pool.Shutdown()

	ln := fasthttputil.NewInmemoryListener()
	srv := prometheus.NewServer(reg)
	go srv.Serve(ln)
	defer srv.Shutdown()

	httpClient := &http.Client{
		Transport: &http.Transport{
			Dial: func(network, addr string) (net.Conn, error) {
				return ln.Dial()
			},
		},
	}
	defer httpClient.CloseIdleConnections()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := httpClient.Get("http://test" + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		return resp.StatusCode, string(body)
	}

	t.Run("ScrapeMetrics", func(t *testing.T) {
		status, body := get("/metrics")
		if status != 200 {
			t.Fatalf("status = %d, want 200", status)
		}

		want := []string{
			`workpool_items_submitted_total{pool="integration",service="workpool"} 6`,
			`workpool_items_completed_total{pool="integration",service="workpool"} 5`,
			`workpool_items_panicked_total{pool="integration",service="workpool"} 1`,
			"workpool_item_duration_seconds_bucket",
			"workpool_item_wait_seconds_bucket",
		}
		for _, line := range want {
			if !strings.Contains(body, line) {
				t.Errorf("metrics output missing %q", line)
			}
		}
	})

	t.Run("Healthz", func(t *testing.T) {
		status, body := get("/healthz")
		if status != 200 || body != "ok" {
			t.Errorf("GET /healthz = %d %q, want 200 ok", status, body)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if status, _ := get("/nope"); status != 404 {
			t.Errorf("GET /nope = %d, want 404", status)
		}
	})
}
