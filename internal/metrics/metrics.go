package metrics

import (
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeDone      = "done"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

var (
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "libria_pipeline_runs_total",
		Help: "Delivery pipeline runs by terminal outcome",
	}, []string{"outcome"}) // outcome=done|failed|cancelled

	filesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "libria_files_delivered_total",
		Help: "Files processed by the delivery pipeline by variant",
	}, []string{"variant"}) // variant=transcoded|original|failed

	pollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "libria_poll_failures_total",
		Help: "Progress polls that could not reach the download manager",
	})

	transcodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "libria_transcode_duration_seconds",
		Help:    "Wall time of ffmpeg transcodes",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"result"}) // result=ok|failed

	janitorRemovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "libria_janitor_removals_total",
		Help: "Orphaned registrations swept by the janitor by outcome",
	}, []string{"outcome"}) // outcome=removed|failed
)

func RecordPipelineRun(outcome string) {
	pipelineRuns.WithLabelValues(outcome).Inc()
}

func RecordFileDelivered(v domain.Variant) {
	filesDelivered.WithLabelValues(string(v)).Inc()
}

func RecordPollFailure() {
	pollFailures.Inc()
}

func RecordTranscode(d time.Duration, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	transcodeDuration.WithLabelValues(result).Observe(d.Seconds())
}

func RecordJanitorRemoval(ok bool) {
	outcome := "removed"
	if !ok {
		outcome = "failed"
	}
	janitorRemovals.WithLabelValues(outcome).Inc()
}
