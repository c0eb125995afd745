package metrics_collectors

import (
	"sort"

	"github.com/benmeehan/location-tracker/internal/models"
)

// MetricsRegistry holds the metric collectors known to the system metrics service.
type MetricsRegistry struct {
	collectors map[string]MetricCollector
}

// NewMetricsRegistry creates a new MetricsRegistry instance.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		collectors: make(map[string]MetricCollector),
	}
}

// Register adds a metric collector, replacing any collector with the same name.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	r.collectors[collector.Name()] = collector
}

// Enabled returns the collectors enabled by config, ordered by name.
func (r *MetricsRegistry) Enabled(config *models.MetricsConfig) []MetricCollector {
	enabled := make([]MetricCollector, 0, len(r.collectors))
	for _, collector := range r.collectors {
		if collector.IsEnabled(config) {
			enabled = append(enabled, collector)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Name() < enabled[j].Name() })
	return enabled
}
