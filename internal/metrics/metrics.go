// Package metrics holds the Prometheus collectors updated by the
// provisioning stages. Collectors live in a dedicated Registry so a run can
// dump exactly its own series to a textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "foundry_ovirt"

var (
	// Registry holds every collector in this package.
	Registry = prometheus.NewRegistry()

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "stage_duration_seconds",
		Help:      "Length of time per provisioning stage",
		Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	StageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "stage_errors_total",
		Help:      "Total number of errors returned by a provisioning stage, by error kind",
	}, []string{"stage", "kind"})

	PollRounds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "poll_rounds_total",
		Help:      "Total number of polling rounds spent waiting on oVirt",
	}, []string{"stage"})

	CompensatingDestroys = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "compensating_destroys_total",
		Help:      "Total number of destroys run to undo a failed or interrupted provisioning",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(StageDuration)
	Registry.MustRegister(StageErrors)
	Registry.MustRegister(PollRounds)
	Registry.MustRegister(CompensatingDestroys)
}

// ObserveStage records how long stage took.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// CountStageError records one error returned by stage.
func CountStageError(stage, kind string) {
	StageErrors.WithLabelValues(stage, kind).Inc()
}

// CountPollRound records one polling round in stage.
func CountPollRound(stage string) {
	PollRounds.WithLabelValues(stage).Inc()
}

// Values of the compensating_destroys_total "result" label.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// CountCompensatingDestroy records one compensating destroy under ResultOK
// or, when err is set, ResultError.
func CountCompensatingDestroy(err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	CompensatingDestroys.WithLabelValues(result).Inc()
}

// WriteTextfile writes every collector in Registry to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
