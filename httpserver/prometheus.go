package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusHandlerFor serves gatherer, typically a private registry.
//
//	reg := prometheus.NewRegistry()
//	r.Handle("/metrics", httpserver.PrometheusHandlerFor(reg, promhttp.HandlerOpts{}))
func PrometheusHandlerFor(gatherer prometheus.Gatherer, opts promhttp.HandlerOpts) http.Handler {
	return promhttp.HandlerFor(gatherer, opts)
}
