package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the collector's registry, negotiating OpenMetrics when the
// scraper asks for it. Scrapes are themselves counted on the registry as
// promhttp_metric_handler_requests_total, and gather failures as
// promhttp_metric_handler_errors_total, so a broken collector still
// answers with the metrics it could gather.
func (c *Collector) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(c.registry, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry:          c.registry,
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
}
