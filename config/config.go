// Package config loads remediation playbooks from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/GoCodeAlone/remediation/alerts"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config is the top-level remediation configuration.
type Config struct {
	Kubernetes KubernetesConfig `json:"kubernetes" yaml:"kubernetes"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing"`
	// Concurrency bounds how many alerts of one payload are handled at once.
	Concurrency int        `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Playbooks   []Playbook `json:"playbooks" yaml:"playbooks"`
}

// KubernetesConfig selects the cluster pods are resolved in.
type KubernetesConfig struct {
	Kubeconfig string   `json:"kubeconfig,omitempty" yaml:"kubeconfig,omitempty"`
	Context    string   `json:"context,omitempty" yaml:"context,omitempty"`
	Shell      []string `json:"shell,omitempty" yaml:"shell,omitempty"`
}

// StoreConfig selects where enrichments are persisted.
type StoreConfig struct {
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Address  string `json:"address,omitempty" yaml:"address,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	TTL      string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TracingConfig configures OTLP trace export. An empty endpoint disables it.
type TracingConfig struct {
	Endpoint    string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ServiceName string  `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	Insecure    bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRate  float64 `json:"sampleRate,omitempty" yaml:"sampleRate,omitempty"`
}

// Playbook binds a trigger to an ordered list of actions.
type Playbook struct {
	Name    string   `json:"name" yaml:"name"`
	Trigger Trigger  `json:"trigger" yaml:"trigger"`
	OnError string   `json:"onError,omitempty" yaml:"on_error,omitempty"`
	Timeout string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Actions []Action `json:"actions" yaml:"actions"`
}

// Trigger selects the alerts a playbook runs for.
type Trigger struct {
	// AlertName must equal the alert's alertname label. Empty matches any alert.
	AlertName string `json:"alertName,omitempty" yaml:"alert_name,omitempty"`
	// Labels must all be present on the alert with equal values.
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	// Status is "firing" (default), "resolved" or "any".
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
}

// Action is one configured remediation step.
type Action struct {
	Name   string         `json:"name,omitempty" yaml:"name,omitempty"`
	Type   string         `json:"type" yaml:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// LoadFromFile loads a remediation configuration from a YAML file.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration. The store password is expanded from
// the environment so it need not be written to disk.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Store.Password = os.ExpandEnv(cfg.Store.Password)
	for i := range cfg.Playbooks {
		for j := range cfg.Playbooks[i].Actions {
			a := &cfg.Playbooks[i].Actions[j]
			if a.Name == "" {
				a.Name = a.Type
			}
		}
	}
	return &cfg, nil
}

// Validate checks the configuration. knownTypes lists the registered action
// types; a nil slice skips that check.
func (c *Config) Validate(knownTypes []string) error {
	var errs []error

	switch c.Store.Type {
	case "", StoreMemory:
	case StoreRedis:
		if c.Store.Address == "" {
			errs = append(errs, errors.New("store: redis requires 'address'"))
		}
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store: sqlite requires 'path'"))
		}
	default:
		errs = append(errs, fmt.Errorf("store: unknown type %q (expected memory, redis, or sqlite)", c.Store.Type))
	}
	if _, err := c.Store.TTLDuration(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing: sampleRate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}

	seen := make(map[string]bool, len(c.Playbooks))
	for i, pb := range c.Playbooks {
		where := fmt.Sprintf("playbooks[%d]", i)
		if pb.Name == "" {
			errs = append(errs, fmt.Errorf("%s: 'name' is required", where))
		} else {
			where = fmt.Sprintf("playbook %q", pb.Name)
			if seen[pb.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate name", where))
			}
			seen[pb.Name] = true
		}

		switch pb.OnError {
		case "", "stop", "skip":
		default:
			errs = append(errs, fmt.Errorf("%s: invalid on_error %q (expected stop or skip)", where, pb.OnError))
		}
		switch pb.Trigger.Status {
		case "", alerts.StatusFiring, alerts.StatusResolved, "any":
		default:
			errs = append(errs, fmt.Errorf("%s: invalid trigger status %q", where, pb.Trigger.Status))
		}
		if _, err := pb.TimeoutDuration(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if len(pb.Actions) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one action is required", where))
		}

		names := make(map[string]bool, len(pb.Actions))
		for j, a := range pb.Actions {
			if a.Type == "" {
				errs = append(errs, fmt.Errorf("%s: actions[%d]: 'type' is required", where, j))
				continue
			}
			if knownTypes != nil && !slices.Contains(knownTypes, a.Type) {
				errs = append(errs, fmt.Errorf("%s: actions[%d]: unknown type %q", where, j, a.Type))
			}
			if names[a.Name] {
				errs = append(errs, fmt.Errorf("%s: actions[%d]: duplicate action name %q", where, j, a.Name))
			}
			names[a.Name] = true
		}
	}

	return errors.Join(errs...)
}

// TimeoutDuration parses the playbook timeout. Empty means no timeout.
func (p Playbook) TimeoutDuration() (time.Duration, error) {
	return parseDuration("timeout", p.Timeout)
}

// TTLDuration parses the store TTL. Empty means records never expire.
func (s StoreConfig) TTLDuration() (time.Duration, error) {
	return parseDuration("ttl", s.TTL)
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", field, s)
	}
	return d, nil
}

// Matches reports whether the trigger selects alert.
func (t Trigger) Matches(alert *alerts.Alert) bool {
	switch t.Status {
	case "", alerts.StatusFiring:
		if !alert.IsFiring() {
			return false
		}
	case alerts.StatusResolved:
		if alert.Status != alerts.StatusResolved {
			return false
		}
	}

	if t.AlertName != "" && t.AlertName != alert.Name() {
		return false
	}
	for k, v := range t.Labels {
		got, ok := alert.Labels[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}
