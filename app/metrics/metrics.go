// Package metrics exposes the pipe's operational counters in Prometheus
// text format.
package metrics

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is the metrics sink handed to the capture and ingestion paths.
// One process-lifetime instance is injected instead of package globals so
// components stay testable in isolation.
type Collector interface {
	RecordStatusCode(statusCode int)
	RecordPipeError()
}

// countedStatusCodes are the upstream status classes worth tracking; other
// codes are logged but not counted.
var countedStatusCodes = map[int]bool{
	http.StatusOK:                 true,
	http.StatusNotModified:        true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
}

// PrometheusCollector implements Collector on a Prometheus registry
type PrometheusCollector struct {
	statusCodes *prometheus.CounterVec
	pipeErrors  prometheus.Counter
}

// NewCollector registers the pipe metrics with the given registry. The
// unreadCount function is sampled on every scrape and backs the live unread
// items gauge.
func NewCollector(reg prometheus.Registerer, unreadCount func() float64) *PrometheusCollector {
	c := &PrometheusCollector{
		statusCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rss_pipe_status_code_count",
			Help: "Upstream responses seen by the capture pipe, by status code",
		}, []string{"status_code"}),
		pipeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rss_pipe_error_count",
			Help: "Ingestion pipeline errors (parse failures, enqueue failures)",
		}),
	}

	unread := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rss_pipe_unread_count",
		Help: "Items currently unread",
	}, unreadCount)

	reg.MustRegister(c.statusCodes, c.pipeErrors, unread)

	// Surface all tracked codes from the first scrape on
	for code := range countedStatusCodes {
		c.statusCodes.WithLabelValues(strconv.Itoa(code))
	}

	return c
}

// RecordStatusCode counts an upstream response status
func (c *PrometheusCollector) RecordStatusCode(statusCode int) {
	if !countedStatusCodes[statusCode] {
		slog.Info("Received uncounted status code", "status_code", statusCode)
		return
	}
	c.statusCodes.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPipeError counts one ingestion error
func (c *PrometheusCollector) RecordPipeError() {
	c.pipeErrors.Inc()
}

// Handler returns the HTTP handler serving the Prometheus text exposition
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
