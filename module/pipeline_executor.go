package module

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoCodeAlone/remediation/alerts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorStrategy defines how a pipeline handles step errors.
type ErrorStrategy string

const (
	ErrorStrategyStop ErrorStrategy = "stop"
	ErrorStrategySkip ErrorStrategy = "skip"
)

const tracerName = "github.com/GoCodeAlone/remediation/module"

// Pipeline is an ordered sequence of remediation actions run for one alert.
type Pipeline struct {
	Name    string
	Steps   []PipelineStep
	OnError ErrorStrategy
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *MetricsCollector
	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// Execute runs every step against pc in order. With ErrorStrategyStop the
// first failing step aborts the pipeline; with ErrorStrategySkip failures
// are logged and recorded in the step output.
func (p *Pipeline) Execute(ctx context.Context, pc *PipelineContext) (err error) {
	if pc.Alert == nil {
		pc.Alert = &alerts.Alert{}
	}
	if pc.Metadata == nil {
		pc.Metadata = make(map[string]any)
	}
	if pc.StepOutputs == nil {
		pc.StepOutputs = make(map[string]map[string]any)
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if pc.Logger == nil {
		pc.Logger = logger
	}
	tracer := p.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	ctx, span := tracer.Start(ctx, "playbook "+p.Name, trace.WithAttributes(
		attribute.String("playbook", p.Name),
		attribute.String("alert.name", pc.Alert.Name()),
		attribute.String("alert.key", pc.Alert.Key()),
	))
	before := len(pc.Enrichments())
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if p.Metrics != nil {
			p.Metrics.RecordPlaybook(p.Name, status)
			p.Metrics.RecordEnrichments(p.Name, len(pc.Enrichments())-before)
		}
		span.End()
	}()

	pc.Metadata["playbook"] = p.Name
	pc.Metadata["started_at"] = time.Now().UTC().Format(time.RFC3339)

	logger.Info("Playbook started", "playbook", p.Name, "alert", pc.Alert.Name(), "steps", len(p.Steps))

	for i, step := range p.Steps {
		select {
		case <-ctx.Done():
			return fmt.Errorf("playbook %q cancelled: %w", p.Name, ctx.Err())
		default:
		}

		result, stepErr := p.runStep(ctx, tracer, logger, step, i, pc)
		if stepErr != nil {
			if p.OnError == ErrorStrategySkip {
				logger.Warn("Skipping failed step", "playbook", p.Name, "step", step.Name())
				pc.MergeStepOutput(step.Name(), map[string]any{"_error": stepErr.Error(), "_skipped": true})
				continue
			}
			return fmt.Errorf("step %q failed: %w", step.Name(), stepErr)
		}

		if result != nil && result.Output != nil {
			pc.MergeStepOutput(step.Name(), result.Output)
		} else {
			pc.MergeStepOutput(step.Name(), map[string]any{})
		}

		if result != nil && result.Stop {
			logger.Info("Playbook stopped by step", "playbook", p.Name, "step", step.Name())
			break
		}
	}

	pc.Metadata["completed_at"] = time.Now().UTC().Format(time.RFC3339)
	logger.Info("Playbook completed", "playbook", p.Name, "alert", pc.Alert.Name())
	return nil
}

func (p *Pipeline) runStep(ctx context.Context, tracer trace.Tracer, logger *slog.Logger, step PipelineStep, index int, pc *PipelineContext) (*StepResult, error) {
	ctx, span := tracer.Start(ctx, "step "+step.Name(), trace.WithAttributes(
		attribute.String("playbook", p.Name),
		attribute.String("step", step.Name()),
		attribute.Int("index", index),
	))
	defer span.End()

	start := time.Now()
	logger.Info("Step started", "playbook", p.Name, "step", step.Name(), "index", index)

	result, err := step.Execute(ctx, pc)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Step failed", "playbook", p.Name, "step", step.Name(), "error", err, "elapsed", elapsed)
	} else {
		logger.Info("Step completed", "playbook", p.Name, "step", step.Name(), "elapsed", elapsed)
	}
	if p.Metrics != nil {
		p.Metrics.RecordAction(p.Name, step.Name(), status, elapsed)
	}
	return result, err
}
