package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog"

var (
	// RenderCycles counts render cycles started.
	RenderCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_cycles_total",
		Help:      "Number of render cycles started.",
	})

	// ImageResults counts settled image requests by result: attached, failed, stale.
	ImageResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_results_total",
		Help:      "Settled product image requests by result.",
	}, []string{"result"})

	// InvalidProducts counts skipped product records by stage: load, render.
	InvalidProducts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invalid_products_total",
		Help:      "Product records skipped for violating the product contract.",
	}, []string{"stage"})

	// ActiveSessions tracks live catalog view sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Catalog view sessions currently held in memory.",
	})
)

// MetricsHandler exposes the default prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
