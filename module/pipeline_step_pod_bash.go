package module

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/remediation/enrichment"
)

// PodBashEnricherType is the registry name of the pod command action.
const PodBashEnricherType = "pod_templated_bash_enricher"

// PodBashParams configures PodBashEnricherStep.
type PodBashParams struct {
	// BashCommand is the command, or command template, to run in the pod.
	BashCommand string
	// TemplateCmd renders BashCommand with the alert labels before running it.
	TemplateCmd bool
}

// ParsePodBashParams reads bash_command and template_cmd from a step config.
func ParsePodBashParams(config map[string]any) (PodBashParams, error) {
	var p PodBashParams

	raw, ok := config["bash_command"]
	if !ok {
		return p, fmt.Errorf("'bash_command' is required")
	}
	cmd, ok := raw.(string)
	if !ok {
		return p, fmt.Errorf("'bash_command' must be a string, got %T", raw)
	}
	if cmd == "" {
		return p, fmt.Errorf("'bash_command' must not be empty")
	}
	p.BashCommand = cmd

	if raw, ok := config["template_cmd"]; ok && raw != nil {
		b, ok := raw.(bool)
		if !ok {
			return p, fmt.Errorf("'template_cmd' must be a boolean, got %T", raw)
		}
		p.TemplateCmd = b
	}
	return p, nil
}

// Command returns the command to execute for an alert with the given labels.
// Labels are only consulted when TemplateCmd is set.
func (p PodBashParams) Command(labels map[string]string) string {
	if !p.TemplateCmd {
		return p.BashCommand
	}
	return RenderCommand(p.BashCommand, labels)
}

// PodCommandResult is the executed command and what it printed.
type PodCommandResult struct {
	Command string
	Output  string
}

// Blocks renders the result as the two enrichment blocks attached to the
// alert: a header naming the command, then the raw output.
func (r PodCommandResult) Blocks() []enrichment.Block {
	return []enrichment.Block{
		enrichment.Markdown(fmt.Sprintf("Command results for *%s:*", r.Command)),
		enrichment.Markdown(r.Output),
	}
}

// RunPodCommand prepares the command for labels and executes it on pod.
// Execution errors are returned unchanged apart from wrapping.
func RunPodCommand(ctx context.Context, labels map[string]string, pod PodExecutor, params PodBashParams) (PodCommandResult, error) {
	cmd := params.Command(labels)
	out, err := pod.Exec(ctx, cmd)
	if err != nil {
		return PodCommandResult{Command: cmd}, fmt.Errorf("run %q: %w", cmd, err)
	}
	return PodCommandResult{Command: cmd, Output: out}, nil
}

// PodBashEnricherStep runs a command inside the alert's target pod and
// attaches the output to the alert.
type PodBashEnricherStep struct {
	name   string
	params PodBashParams
}

// NewPodBashEnricherStepFactory returns a StepFactory that creates PodBashEnricherStep instances.
func NewPodBashEnricherStepFactory() StepFactory {
	return func(name string, config map[string]any) (PipelineStep, error) {
		params, err := ParsePodBashParams(config)
		if err != nil {
			return nil, fmt.Errorf("%s step %q: %w", PodBashEnricherType, name, err)
		}
		return &PodBashEnricherStep{name: name, params: params}, nil
	}
}

// Name returns the step name.
func (s *PodBashEnricherStep) Name() string { return s.name }

// Params returns the step's parameters.
func (s *PodBashEnricherStep) Params() PodBashParams { return s.params }

// Execute resolves the target pod, runs the command and records the
// enrichment. An alert without a pod is logged and skipped.
func (s *PodBashEnricherStep) Execute(ctx context.Context, pc *PipelineContext) (*StepResult, error) {
	pod, err := pc.TargetPod(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s step %q: resolve pod: %w", PodBashEnricherType, s.name, err)
	}
	if pod == nil {
		pc.logger().Error("Cannot run pod bash enricher on alert with no pod",
			"step", s.name,
			"alert", pc.Alert.Name(),
			"alert_key", pc.Alert.Key(),
		)
		return &StepResult{Output: map[string]any{"skipped": true}}, nil
	}

	res, err := RunPodCommand(ctx, pc.Labels(), pod, s.params)
	if err != nil {
		return nil, fmt.Errorf("%s step %q: %w", PodBashEnricherType, s.name, err)
	}

	pc.AddEnrichment(s.name, res.Blocks())

	return &StepResult{Output: map[string]any{
		"command": res.Command,
		"output":  res.Output,
	}}, nil
}
