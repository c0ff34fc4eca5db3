package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsCreated *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	restarts       *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	cycleDuration  *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendsentry_signals_created_total",
				Help: "Total number of signals accepted by the coordinator",
			},
			[]string{"symbol", "tier"},
		),
		transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendsentry_signal_transitions_total",
				Help: "Total number of signal lifecycle transitions",
			},
			[]string{"status"},
		),
		restarts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendsentry_worker_restarts_total",
				Help: "Total number of worker restarts after abnormal exits",
			},
			[]string{"worker"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendsentry_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendsentry_last_price",
				Help: "Last streamed price for a symbol",
			},
			[]string{"symbol"},
		),
		cycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendsentry_worker_cycle_duration_seconds",
				Help:    "Duration of one worker cycle in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"worker"},
		),
	}
}

// RecordSignalCreated records an accepted signal.
func (r *Recorder) RecordSignalCreated(symbol, tier string) {
	r.signalsCreated.WithLabelValues(symbol, tier).Inc()
}

// RecordTransition records one lifecycle transition.
func (r *Recorder) RecordTransition(status string) {
	r.transitions.WithLabelValues(status).Inc()
}

// RecordWorkerRestart records a supervised restart.
func (r *Recorder) RecordWorkerRestart(workerID string) {
	r.restarts.WithLabelValues(workerID).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordCycleDuration records one worker cycle's wall time.
func (r *Recorder) RecordCycleDuration(workerID string, seconds float64) {
	r.cycleDuration.WithLabelValues(workerID).Observe(seconds)
}
