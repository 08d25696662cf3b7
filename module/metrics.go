package module

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollectorConfig holds configuration for the MetricsCollector.
type MetricsCollectorConfig struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Subsystem string `yaml:"subsystem" json:"subsystem"`
}

// DefaultMetricsCollectorConfig returns the default configuration.
func DefaultMetricsCollectorConfig() MetricsCollectorConfig {
	return MetricsCollectorConfig{Namespace: "remediation"}
}

// MetricsCollector wraps the Prometheus metrics recorded while running
// playbooks. It owns its registry so several collectors can coexist.
type MetricsCollector struct {
	registry *prometheus.Registry

	PlaybookExecutions *prometheus.CounterVec
	ActionExecutions   *prometheus.CounterVec
	ActionDuration     *prometheus.HistogramVec
	EnrichmentsTotal   *prometheus.CounterVec
}

// NewMetricsCollector creates a MetricsCollector with the default config.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithConfig(DefaultMetricsCollectorConfig())
}

// NewMetricsCollectorWithConfig creates a MetricsCollector with its own registry.
func NewMetricsCollectorWithConfig(cfg MetricsCollectorConfig) *MetricsCollector {
	reg := prometheus.NewRegistry()
	ns, sub := cfg.Namespace, cfg.Subsystem

	mc := &MetricsCollector{
		registry: reg,
		PlaybookExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "playbook_executions_total",
			Help:      "Total number of playbook executions",
		}, []string{"playbook", "status"}),
		ActionExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "action_executions_total",
			Help:      "Total number of remediation action executions",
		}, []string{"playbook", "action", "status"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "action_duration_seconds",
			Help:      "Duration of remediation actions in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"playbook", "action"}),
		EnrichmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "enrichments_total",
			Help:      "Total number of enrichments attached to alerts",
		}, []string{"playbook"}),
	}

	reg.MustRegister(mc.PlaybookExecutions, mc.ActionExecutions, mc.ActionDuration, mc.EnrichmentsTotal)
	return mc
}

// Registry returns the collector's Prometheus registry.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// RecordPlaybook counts one playbook execution.
func (mc *MetricsCollector) RecordPlaybook(playbook, status string) {
	mc.PlaybookExecutions.WithLabelValues(playbook, status).Inc()
}

// RecordAction counts one action execution and observes its duration.
func (mc *MetricsCollector) RecordAction(playbook, action, status string, d time.Duration) {
	mc.ActionExecutions.WithLabelValues(playbook, action, status).Inc()
	mc.ActionDuration.WithLabelValues(playbook, action).Observe(d.Seconds())
}

// RecordEnrichments adds n attached enrichments for playbook.
func (mc *MetricsCollector) RecordEnrichments(playbook string, n int) {
	if n > 0 {
		mc.EnrichmentsTotal.WithLabelValues(playbook).Add(float64(n))
	}
}
