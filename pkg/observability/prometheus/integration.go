package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// FastHTTPHandler serves /metrics from gatherer and a plain /healthz liveness check.
// A nil gatherer means DefaultRegistry.
func FastHTTPHandler(gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	if gatherer == nil {
		gatherer = DefaultRegistry
	}
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	)

	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/metrics":
			metricsHandler(ctx)
		case "/healthz":
			ctx.SetContentType("text/plain; charset=utf-8")
			ctx.SetBodyString("ok")
		default:
			ctx.Error("not found", fasthttp.StatusNotFound)
		}
	}
}

// NewServer returns a fasthttp server exposing FastHTTPHandler(gatherer)
func NewServer(gatherer prometheus.Gatherer) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:               FastHTTPHandler(gatherer),
		Name:                  "workpool-metrics",
		NoDefaultServerHeader: true,
	}
}
