// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A warehouse run is a batch job with no scrape endpoint, so collected
// metrics are pushed to a Pushgateway on Flush. The job name becomes the
// Pushgateway grouping key and is therefore not a metric label.
package prompush

import (
	"fmt"

	"dwh/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // dwh_step_total{entity,phase,status}
	stepDuration  *prometheus.SummaryVec // dwh_step_duration_seconds{entity,phase,status}
	recordCounter *prometheus.CounterVec // dwh_records_total{entity,kind}
	batchCounter  *prometheus.CounterVec // dwh_batches_total{entity}
	commitCounter *prometheus.CounterVec // dwh_snapshot_commits_total{layer,status}
	findCounter   *prometheus.CounterVec // dwh_audit_findings_total{entity,rule}
}

var stepLabels = []string{"entity", "phase", "status"}

// NewBackend constructs a Prometheus Pushgateway backend.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "dwh"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline phase executions, partitioned by entity, phase and status.",
		}, stepLabels),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of pipeline phases in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, stepLabels),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Row counts per entity and kind (read, parse_errors, rejected, written).",
		}, []string{"entity", "kind"}),
		batchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Load batches flushed per entity.",
		}, []string{"entity"}),
		commitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.CommitsTotal,
			Help: "Snapshot commit attempts per layer and status.",
		}, []string{"layer", "status"}),
		findCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.FindingsTotal,
			Help: "Quality audit findings per entity and rule.",
		}, []string{"entity", "rule"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":    b.stepCounter,
		"step summary":    b.stepDuration,
		"record counter":  b.recordCounter,
		"batch counter":   b.batchCounter,
		"commit counter":  b.commitCounter,
		"finding counter": b.findCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	var vec *prometheus.CounterVec
	var values []string

	switch name {
	case metrics.StepTotal:
		vec, values = b.stepCounter, []string{labels["entity"], labels["phase"], labels["status"]}
	case metrics.RecordsTotal:
		vec, values = b.recordCounter, []string{labels["entity"], labels["kind"]}
	case metrics.BatchesTotal:
		vec, values = b.batchCounter, []string{labels["entity"]}
	case metrics.CommitsTotal:
		vec, values = b.commitCounter, []string{labels["layer"], labels["status"]}
	case metrics.FindingsTotal:
		vec, values = b.findCounter, []string{labels["entity"], labels["rule"]}
	default:
		return
	}
	if vec == nil {
		return
	}
	vec.WithLabelValues(values...).Add(delta)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["entity"], labels["phase"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
