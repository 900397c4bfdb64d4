// Package metrics counts batch progress with Prometheus collectors and can
// export them as a node-exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "busmon"

// Recorder owns a private registry so several batches in one process never
// collide on registration.
type Recorder struct {
	registry *prometheus.Registry

	runsAnalyzed    *prometheus.CounterVec
	runsSkipped     *prometheus.CounterVec
	segmentsFlagged prometheus.Counter
	thresholdGroups prometheus.Gauge
	flipsDetected   prometheus.Counter
	flipGroups      prometheus.Gauge
	batchDuration   *prometheus.HistogramVec
}

// New builds a recorder and registers its collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runsAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_analyzed_total",
			Help:      "Runs analysed successfully, by pass.",
		}, []string{"pass"}),
		runsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_skipped_total",
			Help:      "Runs excluded from a pass after a processing error.",
		}, []string{"pass"}),
		segmentsFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_flagged_total",
			Help:      "Steady-state segments failing every tracked threshold.",
		}),
		thresholdGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold_groups",
			Help:      "OFP/test case groups with derived dynamic thresholds in the last batch.",
		}),
		flipsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_flips_total",
			Help:      "Bus A/B flips detected.",
		}),
		flipGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bus_flip_groups",
			Help:      "Unit/station/save groups with at least one flip in the last batch.",
		}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a batch command.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"command"}),
	}
	r.registry.MustRegister(
		r.runsAnalyzed, r.runsSkipped, r.segmentsFlagged, r.thresholdGroups,
		r.flipsDetected, r.flipGroups, r.batchDuration,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) RunAnalyzed(pass string) { r.runsAnalyzed.WithLabelValues(pass).Inc() }

func (r *Recorder) RunSkipped(pass string) { r.runsSkipped.WithLabelValues(pass).Inc() }

func (r *Recorder) SegmentsFlagged(n int) { r.segmentsFlagged.Add(float64(n)) }

func (r *Recorder) ThresholdGroups(n int) { r.thresholdGroups.Set(float64(n)) }

// FlipsDetected records the outcome of one detection batch.
func (r *Recorder) FlipsDetected(flips, groups int) {
	r.flipsDetected.Add(float64(flips))
	r.flipGroups.Set(float64(groups))
}

// ObserveBatch records how long command took since start.
func (r *Recorder) ObserveBatch(command string, start time.Time) {
	r.batchDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes every collected metric to path in the text exposition
// format. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("metrics textfile: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics textfile: %w", err)
	}
	return nil
}
