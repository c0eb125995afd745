package observability

import (
	"errors"
	"time"

	"github.com/benmeehan/location-tracker/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

var (
	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_ingest_total",
		Help: "Location reports received, by source and result",
	}, []string{"source", "result"})
	CommitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_store_commits_total",
		Help: "Store mutations, by operation and result",
	}, []string{"operation", "result"})
	CommitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_store_commit_latency_seconds",
		Help:    "Latency of a full mutate and persist cycle",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	SnapshotLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_snapshot_loads_total",
		Help: "Snapshot loads, by backend and outcome (ok, missing, corrupt)",
	}, []string{"backend", "outcome"})
	Devices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_devices",
		Help: "Number of devices currently stored",
	})
	SystemUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracker_system_usage",
		Help: "Host metrics sampled by the system metrics service",
	}, []string{"metric", "unit"})
)

// ObserveCommit records the latency and outcome of one store mutation.
func ObserveCommit(operation, result string, start time.Time) {
	CommitLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	CommitTotal.WithLabelValues(operation, result).Inc()
}

// ResultLabel classifies an operation error into a result label.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, store.ErrValidation):
		return ResultInvalid
	case errors.Is(err, store.ErrNotFound):
		return ResultNotFound
	default:
		return ResultError
	}
}
