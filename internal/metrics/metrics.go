// Package metrics provides Prometheus metrics for the lazystatus engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Rescan metrics
	rescansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazystatus_rescans_total",
			Help: "Total number of status rescans",
		},
		[]string{"kind", "result"},
	)

	rescanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lazystatus_rescan_duration_seconds",
			Help:    "Status rescan duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	snapshotEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lazystatus_snapshot_entries",
			Help: "Number of entries in the published status snapshot",
		},
	)

	snapshotVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lazystatus_snapshot_version",
			Help: "Version of the published status view",
		},
	)

	// Dirty tracking and queue metrics
	dirtyPaths = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lazystatus_dirty_paths",
			Help: "Number of paths waiting for a rescan",
		},
	)

	actionsDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lazystatus_actions_drained_total",
			Help: "Total number of actions run on the consumer goroutine",
		},
	)

	// Stage metrics
	stageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazystatus_stage_operations_total",
			Help: "Total number of stage and unstage operations",
		},
		[]string{"op", "mode", "result"},
	)

	stagesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lazystatus_stage_operations_in_flight",
			Help: "Number of asynchronous stage operations not yet completed",
		},
	)

	gateState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lazystatus_update_gate",
			Help: "Current update gate (0 means ready)",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordRescan records a finished rescan. kind is "full" or "scoped".
func RecordRescan(kind string, duration time.Duration, success bool) {
	rescansTotal.WithLabelValues(kind, resultLabel(success)).Inc()
	if success {
		rescanDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// SetSnapshot records the size and version of a newly published view.
func SetSnapshot(entries int, version uint64) {
	snapshotEntries.Set(float64(entries))
	snapshotVersion.Set(float64(version))
}

// SetDirtyPaths records the pending dirty path count.
func SetDirtyPaths(count int) {
	dirtyPaths.Set(float64(count))
}

// RecordActionsDrained adds a drained batch size.
func RecordActionsDrained(count int) {
	actionsDrained.Add(float64(count))
}

// RecordStage records a stage or unstage operation.
func RecordStage(op string, async, success bool) {
	mode := "sync"
	if async {
		mode = "async"
	}
	stageOpsTotal.WithLabelValues(op, mode, resultLabel(success)).Inc()
}

// SetStagesInFlight records the number of pending asynchronous stage operations.
func SetStagesInFlight(count int) {
	stagesInFlight.Set(float64(count))
}

// SetGate records the numeric gate value.
func SetGate(gate int) {
	gateState.Set(float64(gate))
}
