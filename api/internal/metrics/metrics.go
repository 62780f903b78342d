package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Detection outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeUnparseable = "unparseable"
	OutcomeEngineError = "engine_error"
	OutcomeCached      = "cached"
)

// Metrics holds the collectors of the detection pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Detections   *prometheus.CounterVec
	ModelLatency *prometheus.HistogramVec
	Rescaled     prometheus.Counter
	Stored       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelfscan",
			Name:      "detections_total",
			Help:      "Detection calls by engine and outcome.",
		}, []string{"engine", "outcome"}),
		ModelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shelfscan",
			Name:      "model_request_duration_seconds",
			Help:      "Latency of vision model calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"engine"}),
		Rescaled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shelfscan",
			Name:      "percentages_rescaled_total",
			Help:      "Replies whose percentages had to be rescaled to 100.",
		}),
		Stored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelfscan",
			Name:      "records_stored_total",
			Help:      "Detection records written, by source and result.",
		}, []string{"source", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Detections, m.ModelLatency, m.Rescaled, m.Stored)
	}
	return m
}

func (m *Metrics) ObserveDetection(engine, outcome string) {
	if m == nil {
		return
	}
	m.Detections.WithLabelValues(engine, outcome).Inc()
}

func (m *Metrics) ObserveModelCall(engine string, d time.Duration) {
	if m == nil {
		return
	}
	m.ModelLatency.WithLabelValues(engine).Observe(d.Seconds())
}

func (m *Metrics) ObserveRescale() {
	if m == nil {
		return
	}
	m.Rescaled.Inc()
}

func (m *Metrics) ObserveStore(source string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Stored.WithLabelValues(source, result).Inc()
}
