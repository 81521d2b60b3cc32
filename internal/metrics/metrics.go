// Package metrics records operational metrics of warehouse runs behind a
// small backend-agnostic interface.
//
// The global backend defaults to a no-op so instrumentation is always safe to
// call. Concrete systems live in subpackages (prompush, datadog) and are
// installed by the binary with SetBackend.
package metrics

import "time"

// Metric names.
const (
	StepTotal     = "dwh_step_total"
	StepDuration  = "dwh_step_duration_seconds"
	RecordsTotal  = "dwh_records_total"
	BatchesTotal  = "dwh_batches_total"
	CommitsTotal  = "dwh_snapshot_commits_total"
	FindingsTotal = "dwh_audit_findings_total"

	statusSuccess = "success"
	statusFailure = "failure"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs b and returns the previous backend. nil keeps the
// current one.
func SetBackend(b Backend) Backend {
	prev := backend
	if b != nil {
		backend = b
	}
	return prev
}

// Flush delegates to the current backend.
func Flush() error { return backend.Flush() }

func status(err error) string {
	if err != nil {
		return statusFailure
	}
	return statusSuccess
}

// RecordStep counts one execution of phase for entity and observes its
// duration. entity may be empty for run-wide phases.
func RecordStep(job, entity, phase string, err error, d time.Duration) {
	lbls := Labels{"job": job, "entity": entity, "phase": phase, "status": status(err)}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds delta rows of kind for entity. Kinds: read, parse_errors,
// rejected, written.
func RecordRows(job, entity, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "entity": entity, "kind": kind})
}

// RecordBatches counts flushed load batches for entity.
func RecordBatches(job, entity string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{"job": job, "entity": entity})
}

// RecordCommit counts a snapshot commit attempt for layer.
func RecordCommit(job, layer string, err error) {
	backend.IncCounter(CommitsTotal, 1, Labels{"job": job, "layer": layer, "status": status(err)})
}

// RecordFindings adds audit findings for entity and rule.
func RecordFindings(job, entity, rule string, delta int) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(FindingsTotal, float64(delta), Labels{"job": job, "entity": entity, "rule": rule})
}
