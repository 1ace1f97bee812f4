// Package metrics is a backend-agnostic facade for the counters and timings
// a rowcore run emits.
//
// Callers record through the package functions; a concrete backend
// (Pushgateway, DogStatsD) is installed once with SetBackend. Until then
// every call goes to a no-op backend.
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal            = "rowcore_step_total"
	StepDurationSeconds  = "rowcore_step_duration_seconds"
	RowsTotal            = "rowcore_rows_total"
	BatchesTotal         = "rowcore_batches_total"
	ConversionErrorTotal = "rowcore_conversion_errors_total"
	MergeTotal           = "rowcore_schema_merges_total"
	MergeRenamedTotal    = "rowcore_schema_renamed_fields_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is implemented by each metrics system.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend buffers.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a step and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta rows of the given kind. Kinds used by the harness:
// "read", "converted", "structural_parse", "conversion", "loaded",
// "deleted".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// RecordConversionError counts one value that failed conversion in field.
func RecordConversionError(job, step, field string) {
	backend.IncCounter(ConversionErrorTotal, 1, Labels{
		"job":   job,
		"step":  step,
		"field": field,
	})
}

// RecordMerge counts one schema merge from origin and the number of fields
// it had to rename.
func RecordMerge(job, origin string, renamed int) {
	lbls := Labels{"job": job, "origin": origin}
	backend.IncCounter(MergeTotal, 1, lbls)
	if renamed > 0 {
		backend.IncCounter(MergeRenamedTotal, float64(renamed), lbls)
	}
}
