// Package alerts models Prometheus Alertmanager alerts as delivered to a
// webhook receiver, and derives the Kubernetes pod an alert is about.
package alerts

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/common/model"
)

// Status values reported by Alertmanager.
const (
	StatusFiring   = "firing"
	StatusResolved = "resolved"
)

// Well-known label names.
const (
	LabelAlertName = "alertname"
	LabelNamespace = "namespace"
	LabelPod       = "pod"
	LabelContainer = "container"
	LabelSeverity  = "severity"
)

// DefaultNamespace is used when an alert names a pod but no namespace.
const DefaultNamespace = "default"

// Payload is the Alertmanager webhook envelope.
type Payload struct {
	Version           string            `json:"version"`
	GroupKey          string            `json:"groupKey"`
	TruncatedAlerts   int               `json:"truncatedAlerts"`
	Status            string            `json:"status"`
	Receiver          string            `json:"receiver"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`
	Alerts            []Alert           `json:"alerts"`
}

// Alert is a single alert within a Payload.
type Alert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// PodRef identifies the pod an alert targets.
type PodRef struct {
	Namespace string
	Name      string
	Container string
}

func (r PodRef) String() string {
	return r.Namespace + "/" + r.Name
}

// DecodePayload reads a webhook payload as JSON. A bare alert object or a
// JSON array of alerts is also accepted and wrapped in a Payload.
func DecodePayload(r io.Reader) (*Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read alert payload: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse alert payload: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		var list []Alert
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse alert list: %w", err)
		}
		return &Payload{Status: StatusFiring, Alerts: list}, nil
	case map[string]any:
		if _, ok := v["alerts"]; ok {
			var p Payload
			if err := json.Unmarshal(data, &p); err != nil {
				return nil, fmt.Errorf("parse alert payload: %w", err)
			}
			return &p, nil
		}
		var a Alert
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("parse alert: %w", err)
		}
		return &Payload{Status: a.Status, Alerts: []Alert{a}}, nil
	default:
		return nil, fmt.Errorf("parse alert payload: unexpected JSON %T", raw)
	}
}

// Name returns the alertname label.
func (a *Alert) Name() string {
	return a.Label(LabelAlertName)
}

// Label returns the value of a label, or "" if it is not set.
func (a *Alert) Label(name string) string {
	if a.Labels == nil {
		return ""
	}
	return a.Labels[name]
}

// IsFiring reports whether the alert is currently firing. Alerts with no
// status are treated as firing.
func (a *Alert) IsFiring() bool {
	return a.Status == "" || a.Status == StatusFiring
}

// Key identifies the alert for enrichment storage. It is the Alertmanager
// fingerprint when present, otherwise the same fingerprint computed from the
// label set, so an alert keeps one key whether or not the payload carried it.
func (a *Alert) Key() string {
	if a.Fingerprint != "" {
		return a.Fingerprint
	}
	ls := make(model.LabelSet, len(a.Labels))
	for k, v := range a.Labels {
		ls[model.LabelName(k)] = model.LabelValue(v)
	}
	return ls.Fingerprint().String()
}

// PodRef returns the pod the alert is about. ok is false when the alert
// carries no pod label.
func (a *Alert) PodRef() (PodRef, bool) {
	name := a.Label(LabelPod)
	if name == "" {
		return PodRef{}, false
	}
	ns := a.Label(LabelNamespace)
	if ns == "" {
		ns = DefaultNamespace
	}
	return PodRef{Namespace: ns, Name: name, Container: a.Label(LabelContainer)}, true
}

// LabelsCopy returns a copy of the alert labels.
func (a *Alert) LabelsCopy() map[string]string {
	out := make(map[string]string, len(a.Labels))
	for k, v := range a.Labels {
		out[k] = v
	}
	return out
}
