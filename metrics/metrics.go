// Package metrics holds the Prometheus collectors for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage labels.
const (
	StageLoad      = "load"
	StageClean     = "clean"
	StageAggregate = "aggregate"
	StageRender    = "render"
)

// Drop reasons.
const (
	ReasonNull      = "null"
	ReasonBadDate   = "bad_date"
	ReasonDuplicate = "duplicate"
)

var (
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "salesdash_stage_duration_seconds",
		Help:    "Pipeline stage latency distribution",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"stage"})

	RowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesdash_rows_total",
		Help: "Rows produced by each pipeline stage",
	}, []string{"stage"})

	RowsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesdash_rows_dropped_total",
		Help: "Rows removed during cleaning, by reason",
	}, []string{"reason"})

	RevenueTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "salesdash_revenue_total",
		Help: "Total revenue computed by the last run",
	})
)

func init() {
	prometheus.MustRegister(StageDuration, RowsTotal, RowsDropped, RevenueTotal)
}

// ObserveStage records how long stage took since start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// AddRows counts rows leaving stage.
func AddRows(stage string, n int) {
	RowsTotal.WithLabelValues(stage).Add(float64(n))
}

// AddDropped counts rows removed for reason.
func AddDropped(reason string, n int) {
	RowsDropped.WithLabelValues(reason).Add(float64(n))
}

// WriteTextfile dumps the default registry in the text exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
