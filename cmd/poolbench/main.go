// Command poolbench drives a worker pool with a partial-sum workload and
// checks every parallel result against the sequential one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fluxorio/workpool/pkg/config"
	"github.com/fluxorio/workpool/pkg/core/concurrency"
	"github.com/fluxorio/workpool/pkg/observability/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type options struct {
	configPath string
	workers    int
	trials     int
	chunks     int
	chunkSize  int
	metrics    bool
	trace      bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("poolbench", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", os.Getenv("WORKPOOL_CONFIG"), "path to a YAML or JSON settings file")
	fs.IntVar(&opts.workers, "workers", 0, "override pool.workers (0 keeps the settings value)")
	fs.IntVar(&opts.trials, "trials", 10, "number of rounds to run")
	fs.IntVar(&opts.chunks, "chunks", 256, "work items per round")
	fs.IntVar(&opts.chunkSize, "chunk-size", 256, "values summed by each work item")
	fs.BoolVar(&opts.metrics, "metrics", false, "serve Prometheus metrics while running")
	fs.BoolVar(&opts.trace, "trace", false, "export one span per work item to stderr")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.trials < 1 || opts.chunks < 1 || opts.chunkSize < 1 {
		return opts, fmt.Errorf("trials, chunks and chunk-size must be positive")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "poolbench: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, traceOut io.Writer) error {
	settings, err := config.LoadPoolSettings(opts.configPath, "WORKPOOL")
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if opts.workers > 0 {
		settings.Pool.Workers = opts.workers
	}
	if opts.metrics {
		settings.Metrics.Enabled = true
	}
	if opts.trace {
		settings.Tracing.Enabled = true
	}

	poolConfig, err := settings.WorkerPoolConfig()
	if err != nil {
		return err
	}
	logger := concurrency.NewStdLogger(settings.Pool.Debug)
	poolConfig.Logger = logger
	poolConfig.Observer = prometheus.GetMetrics().Observer(poolConfig.Name)

	if settings.Tracing.Enabled {
		tp, err := newTracerProvider(traceOut, settings.Tracing.Pretty)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("tracer shutdown: %v", err)
			}
		}()
		poolConfig.Tracer = tp.Tracer("github.com/fluxorio/workpool/cmd/poolbench")
	}

	if settings.Metrics.Enabled {
		stopMetrics, err := serveMetrics(settings.Metrics.Addr, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	pool, err := concurrency.NewWorkerPool(poolConfig)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pool.ShutdownContext(shutdownCtx); err != nil {
			logger.Errorf("pool shutdown: %v", err)
		}
	}()

	logger.Infof("pool %s: %d workers, policy=%s, %d trials of %dx%d",
		pool.Name(), pool.Workers(), poolConfig.DrainPolicy, opts.trials, opts.chunks, opts.chunkSize)

	values := makeValues(opts.chunks * opts.chunkSize)
	want := sequentialSum(values)

	for trial := 1; trial <= opts.trials; trial++ {
		if err := ctx.Err(); err != nil {
			if n := pool.CancelPending(); n > 0 {
				logger.Warnf("interrupted, cancelled %d pending items", n)
			}
			return err
		}

		start := time.Now()
		got, err := parallelSum(pool, values, opts.chunks)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("trial %d: parallel sum %d != sequential sum %d", trial, got, want)
		}
		logger.Infof("trial %d: sum=%d in %v", trial, got, time.Since(start))
	}

	stats := pool.Stats()
	logger.Infof("pool %s: submitted=%d completed=%d panicked=%d",
		stats.Name, stats.Submitted, stats.Completed, stats.Panicked)
	return nil
}

func newTracerProvider(out io.Writer, pretty bool) (*sdktrace.TracerProvider, error) {
	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(out)}
	if pretty {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter)), nil
}

// serveMetrics starts the metrics endpoint and returns a func that stops it
func serveMetrics(addr string, logger concurrency.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := prometheus.NewServer(nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(ln); err != nil {
			logger.Errorf("metrics server: %v", err)
		}
	}()
	logger.Infof("metrics on http://%s/metrics", ln.Addr())

	return func() {
		if err := srv.Shutdown(); err != nil {
			logger.Warnf("metrics server shutdown: %v", err)
		}
		wg.Wait()
	}, nil
}

func makeValues(n int) []int64 {
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(i%1000) - 250
	}
	return values
}

func sequentialSum(values []int64) int64 {
	var sum int64
	for _, v := range values {
		sum += v
	}
	return sum
}

// parallelSum splits values into chunks, sums each chunk on the pool and
// adds the partial results once every item has run
func parallelSum(pool concurrency.WorkerPool, values []int64, chunks int) (int64, error) {
	chunkSize := (len(values) + chunks - 1) / chunks
	partial := make([]int64, chunks)

	var wg sync.WaitGroup
	for c := 0; c < chunks; c++ {
		lo := c * chunkSize
		if lo >= len(values) {
			break
		}
		hi := min(lo+chunkSize, len(values))
		c := c

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			partial[c] = sequentialSum(values[lo:hi])
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return 0, err
		}
	}
	wg.Wait()

	return sequentialSum(partial), nil
}
