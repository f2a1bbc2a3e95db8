// Package metrics exposes prometheus instrumentation for the visibility
// engine. Metrics are package-level vars so any component can increment them
// without plumbing a registry through every constructor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

var (
	RefreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapsearch_refresh_total",
		Help: "Total visibility refresh resolutions dispatched",
	})
	RefreshStaleTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapsearch_refresh_stale_total",
		Help: "Resolutions discarded because a newer refresh superseded them",
	})
	RefreshFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapsearch_refresh_failed_total",
		Help: "Resolutions that returned no usable polygon",
	})
	RefreshDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapsearch_refresh_duration_ms",
		Help:    "Visibility refresh duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	VisibilityChangesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapsearch_visibility_changes_total",
		Help: "Refreshes whose visible-marker set differed from the previous one",
	})
	MarkersMountedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapsearch_markers_mounted_total",
		Help: "Markers handed to the render layer by the mount batcher",
	})
	LabelStepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapsearch_label_steps_total",
		Help: "Discrete label opacity steps written through feature state",
	})
	RendererMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapsearch_renderer_messages_total",
		Help: "Renderer bridge messages by type and direction",
	}, []string{"direction", "type"})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mapsearch_sessions_active",
		Help: "Currently active map sessions",
	})
)

// Register adds all engine metrics to the default prometheus registry.
// Called once from main; tests use the metrics unregistered.
func Register() {
	prometheus.MustRegister(
		RefreshTotal,
		RefreshStaleTotal,
		RefreshFailedTotal,
		RefreshDurationMs,
		VisibilityChangesTotal,
		MarkersMountedTotal,
		LabelStepsTotal,
		RendererMessagesTotal,
		SessionsActive,
	)
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
