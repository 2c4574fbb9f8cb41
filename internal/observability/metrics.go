package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

// Metrics holds the run counters. Every method is safe on a nil receiver so
// components can take an optional *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	KeysTotal            *prometheus.CounterVec
	SubtasksTotal        *prometheus.CounterVec
	FailedAttemptsTotal  *prometheus.CounterVec
	PausesTotal          prometheus.Counter
	UploadsTotal         *prometheus.CounterVec
	UploadAttemptsFailed prometheus.Counter
}

// NewMetrics creates the run counters on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		KeysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_keys_total",
				Help: "Total number of keys processed, by outcome",
			},
			[]string{"outcome"},
		),
		SubtasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_subtasks_total",
				Help: "Total number of finished subtasks",
			},
			[]string{"subtask", "status"},
		),
		FailedAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_subtask_attempts_failed_total",
				Help: "Total number of failed generation attempts",
			},
			[]string{"subtask", "status"},
		),
		PausesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "content_rate_limit_pauses_total",
				Help: "Total number of rate-limit pauses",
			},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_uploads_total",
				Help: "Total number of upload items, by outcome",
			},
			[]string{"outcome"},
		),
		UploadAttemptsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "content_upload_attempts_failed_total",
				Help: "Total number of failed upload attempts",
			},
		),
	}
	m.registry.MustRegister(
		m.KeysTotal,
		m.SubtasksTotal,
		m.FailedAttemptsTotal,
		m.PausesTotal,
		m.UploadsTotal,
		m.UploadAttemptsFailed,
	)
	return m
}

// Registry returns the registry the counters are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveKey counts a finished key.
func (m *Metrics) ObserveKey(recorded bool) {
	if m == nil {
		return
	}
	outcome := "recorded"
	if !recorded {
		outcome = "dropped"
	}
	m.KeysTotal.WithLabelValues(outcome).Inc()
}

// ObserveSubtask counts a finished subtask.
func (m *Metrics) ObserveSubtask(name string, status types.SubtaskStatus) {
	if m == nil {
		return
	}
	m.SubtasksTotal.WithLabelValues(name, string(status)).Inc()
}

// ObserveFailedAttempt counts one failed generation attempt.
func (m *Metrics) ObserveFailedAttempt(name string, status types.SubtaskStatus) {
	if m == nil {
		return
	}
	m.FailedAttemptsTotal.WithLabelValues(name, string(status)).Inc()
}

// ObservePause counts a rate-limit pause.
func (m *Metrics) ObservePause() {
	if m == nil {
		return
	}
	m.PausesTotal.Inc()
}

// ObserveUpload counts a finished upload item.
func (m *Metrics) ObserveUpload(delivered bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !delivered {
		outcome = "failed"
	}
	m.UploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUploadRetry counts one failed upload attempt.
func (m *Metrics) ObserveUploadRetry() {
	if m == nil {
		return
	}
	m.UploadAttemptsFailed.Inc()
}

// WriteTextfile writes the counters in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
