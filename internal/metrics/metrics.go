// Package metrics exposes Prometheus counters for the validation pipeline and
// the webhook gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the application. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	Verdicts      *prometheus.CounterVec
	StorageErrors *prometheus.CounterVec
	WebhookEvents *prometheus.CounterVec
	CRMUpdates    *prometheus.CounterVec
	InFlightTasks prometheus.Gauge
}

// New creates a registry and registers every collector on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "email_validator_verdicts_total",
			Help: "Validation verdicts produced, by status",
		}, []string{"status"}),
		StorageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "email_validator_storage_errors_total",
			Help: "Storage operations that failed inside the pipeline, by operation",
		}, []string{"op"}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "email_validator_webhook_events_total",
			Help: "HubSpot webhook events, by outcome",
		}, []string{"outcome"}),
		CRMUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "email_validator_crm_updates_total",
			Help: "Contact updates pushed back to HubSpot, by result",
		}, []string{"result"}),
		InFlightTasks: f.NewGauge(prometheus.GaugeOpts{
			Name: "email_validator_webhook_tasks_in_flight",
			Help: "Detached webhook tasks currently running",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveVerdict counts one verdict.
func (m *Metrics) ObserveVerdict(status string) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(status).Inc()
}

// ObserveStorageError counts one swallowed storage failure.
func (m *Metrics) ObserveStorageError(op string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(op).Inc()
}

// ObserveWebhookEvent counts one webhook event outcome.
func (m *Metrics) ObserveWebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(outcome).Inc()
}

// ObserveCRMUpdate counts one CRM push result ("ok" or "error").
func (m *Metrics) ObserveCRMUpdate(result string) {
	if m == nil {
		return
	}
	m.CRMUpdates.WithLabelValues(result).Inc()
}

// TaskStarted and TaskFinished track detached webhook work.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.InFlightTasks.Inc()
}

func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.InFlightTasks.Dec()
}
