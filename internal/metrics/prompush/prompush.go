// Package prompush pushes rowcore metrics to a Prometheus Pushgateway.
//
// A run is a batch job with no scrape endpoint, so the collectors live in a
// private registry that Flush pushes under the configured job name.
package prompush

import (
	"fmt"

	"rowcore/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // step, status
	stepDuration *prometheus.SummaryVec // step, status

	rowCounter   *prometheus.CounterVec // kind
	batchCounter prometheus.Counter

	conversionErrors *prometheus.CounterVec // step, field
	merges           *prometheus.CounterVec // origin
	renamedFields    *prometheus.CounterVec // origin
}

// NewBackend constructs a Pushgateway backend. jobName defaults to
// "rowcore"; gatewayURL is required.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "rowcore"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows by kind (read, converted, structural_parse, conversion, loaded, deleted).",
		}, []string{"kind"}),
		batchCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Batches flushed to the sink.",
		}),
		conversionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ConversionErrorTotal,
			Help: "Values that failed conversion by step and field.",
		}, []string{"step", "field"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.MergeTotal,
			Help: "Schema merges by origin.",
		}, []string{"origin"}),
		renamedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.MergeRenamedTotal,
			Help: "Fields renamed on merge by origin.",
		}, []string{"origin"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":      b.stepCounter,
		"step summary":      b.stepDuration,
		"row counter":       b.rowCounter,
		"batch counter":     b.batchCounter,
		"conversion errors": b.conversionErrors,
		"merges":            b.merges,
		"renamed fields":    b.renamedFields,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batchCounter != nil {
			b.batchCounter.Add(delta)
		}
	case metrics.ConversionErrorTotal:
		if b.conversionErrors != nil {
			b.conversionErrors.WithLabelValues(labels["step"], labels["field"]).Add(delta)
		}
	case metrics.MergeTotal:
		if b.merges != nil {
			b.merges.WithLabelValues(labels["origin"]).Add(delta)
		}
	case metrics.MergeRenamedTotal:
		if b.renamedFields != nil {
			b.renamedFields.WithLabelValues(labels["origin"]).Add(delta)
		}
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
