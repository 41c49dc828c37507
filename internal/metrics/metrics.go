// Package metrics exposes the conversion engine's observability surface as
// Prometheus collectors: how many tiles have been merged into the final
// result, which density-heuristic mode tiles picked, and how deep the
// pipeline's internal queues are running.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus collectors, registered against a
// private registry so embedding callers can expose it under whatever HTTP
// path (or not at all) they choose.
type Metrics struct {
	registry *prometheus.Registry

	TilesMerged    prometheus.Counter
	ModeSelections *prometheus.CounterVec
	JobQueueDepth  prometheus.Gauge
	ResultQueueDepth prometheus.Gauge
}

// New builds and registers the engine's collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TilesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geotiff2h3",
			Name:      "tiles_merged_total",
			Help:      "Number of tile results merged into the final grouped result.",
		}),
		ModeSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geotiff2h3",
			Name:      "tile_mode_selections_total",
			Help:      "Number of tiles converted under each density-heuristic mode.",
		}, []string{"mode"}),
		JobQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geotiff2h3",
			Name:      "job_queue_depth",
			Help:      "Current number of tile jobs waiting in the pipeline's job queue.",
		}),
		ResultQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geotiff2h3",
			Name:      "result_queue_depth",
			Help:      "Current number of tile results waiting to be merged.",
		}),
	}

	registry.MustRegister(m.TilesMerged, m.ModeSelections, m.JobQueueDepth, m.ResultQueueDepth)
	return m
}

// Registry returns the registry the collectors are registered on, for
// callers that want to expose it via promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
