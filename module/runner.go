package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/remediation/alerts"
	"github.com/GoCodeAlone/remediation/config"
	"github.com/GoCodeAlone/remediation/enrichment"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Playbook is a configured pipeline together with the trigger that selects
// the alerts it runs for.
type Playbook struct {
	Trigger  config.Trigger
	Pipeline *Pipeline
}

// BuildOptions carries shared dependencies into every built pipeline.
type BuildOptions struct {
	Logger  *slog.Logger
	Metrics *MetricsCollector
	Tracer  trace.Tracer
}

// BuildPlaybooks instantiates the playbooks in cfg using registry.
func BuildPlaybooks(cfg *config.Config, registry *StepRegistry, opts BuildOptions) ([]Playbook, error) {
	playbooks := make([]Playbook, 0, len(cfg.Playbooks))
	for _, pbCfg := range cfg.Playbooks {
		timeout, err := pbCfg.TimeoutDuration()
		if err != nil {
			return nil, fmt.Errorf("playbook %q: %w", pbCfg.Name, err)
		}

		steps := make([]PipelineStep, 0, len(pbCfg.Actions))
		for _, a := range pbCfg.Actions {
			name := a.Name
			if name == "" {
				name = a.Type
			}
			step, err := registry.Create(a.Type, name, a.Config)
			if err != nil {
				return nil, fmt.Errorf("playbook %q: %w", pbCfg.Name, err)
			}
			steps = append(steps, step)
		}

		onError := ErrorStrategyStop
		if pbCfg.OnError == string(ErrorStrategySkip) {
			onError = ErrorStrategySkip
		}

		playbooks = append(playbooks, Playbook{
			Trigger: pbCfg.Trigger,
			Pipeline: &Pipeline{
				Name:    pbCfg.Name,
				Steps:   steps,
				OnError: onError,
				Timeout: timeout,
				Logger:  opts.Logger,
				Metrics: opts.Metrics,
				Tracer:  opts.Tracer,
			},
		})
	}
	return playbooks, nil
}

// Runner dispatches alerts to the playbooks whose triggers match and
// persists the enrichments they produce.
type Runner struct {
	Playbooks []Playbook
	Pods      PodResolver
	// Store receives every produced enrichment. Nil skips persistence.
	Store  enrichment.Store
	Logger *slog.Logger
	// Concurrency bounds parallel alert handling in HandlePayload. Zero or
	// less handles one alert at a time.
	Concurrency int
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Handle runs every matching playbook for alert. A failing playbook does
// not prevent the others from running; enrichments produced before a
// failure are still stored and returned.
func (r *Runner) Handle(ctx context.Context, alert *alerts.Alert) ([]enrichment.Enrichment, error) {
	var (
		produced []enrichment.Enrichment
		errs     []error
	)

	matched := 0
	for _, pb := range r.Playbooks {
		if !pb.Trigger.Matches(alert) {
			continue
		}
		matched++

		pc := NewPipelineContext(alert, r.Pods, nil)
		pc.Logger = r.logger()
		if err := pb.Pipeline.Execute(ctx, pc); err != nil {
			errs = append(errs, fmt.Errorf("playbook %q: %w", pb.Pipeline.Name, err))
		}

		for _, e := range pc.Enrichments() {
			if r.Store != nil {
				if err := r.Store.Add(ctx, e); err != nil {
					errs = append(errs, fmt.Errorf("playbook %q: store enrichment: %w", pb.Pipeline.Name, err))
					continue
				}
			}
			produced = append(produced, e)
		}
	}

	if matched == 0 {
		r.logger().Debug("No playbook matched alert", "alert", alert.Name(), "alert_key", alert.Key())
	}
	return produced, errors.Join(errs...)
}

// HandlePayload handles every alert in p. Alerts are independent: one
// alert's failure does not cancel the others. Results keep payload order.
func (r *Runner) HandlePayload(ctx context.Context, p *alerts.Payload) ([]enrichment.Enrichment, error) {
	results := make([][]enrichment.Enrichment, len(p.Alerts))
	errs := make([]error, len(p.Alerts))

	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for i := range p.Alerts {
		alert := &p.Alerts[i]
		g.Go(func() error {
			res, err := r.Handle(ctx, alert)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("alert %s (%s): %w", alert.Name(), alert.Key(), err)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines never fail; errors collected in errs

	var all []enrichment.Enrichment
	for _, res := range results {
		all = append(all, res...)
	}
	return all, errors.Join(errs...)
}
