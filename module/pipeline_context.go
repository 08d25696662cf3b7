package module

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/GoCodeAlone/remediation/alerts"
	"github.com/GoCodeAlone/remediation/enrichment"
)

// PodExecutor runs a command inside a pod and returns its captured output.
type PodExecutor interface {
	Exec(ctx context.Context, command string) (string, error)
}

// PodResolver finds the pod an alert refers to. It returns a nil
// PodExecutor and no error when the pod does not exist.
type PodResolver interface {
	ResolvePod(ctx context.Context, ref alerts.PodRef) (PodExecutor, error)
}

// PipelineContext carries one alert through a playbook execution and
// collects the enrichments its steps produce.
type PipelineContext struct {
	// Alert is the alert that triggered the execution. Steps must not mutate it.
	Alert *alerts.Alert

	// Pods resolves the alert's target pod. May be nil when no cluster is configured.
	Pods PodResolver

	// Logger is used by steps. Nil means slog.Default().
	Logger *slog.Logger

	// StepOutputs maps step-name -> output from each completed step.
	StepOutputs map[string]map[string]any

	// Metadata holds execution metadata (playbook name, start time, etc.)
	Metadata map[string]any

	mu          sync.Mutex
	enrichments []enrichment.Enrichment
}

// NewPipelineContext creates a PipelineContext for alert.
func NewPipelineContext(alert *alerts.Alert, pods PodResolver, metadata map[string]any) *PipelineContext {
	if alert == nil {
		alert = &alerts.Alert{}
	}
	md := make(map[string]any)
	if metadata != nil {
		maps.Copy(md, metadata)
	}
	return &PipelineContext{
		Alert:       alert,
		Pods:        pods,
		StepOutputs: make(map[string]map[string]any),
		Metadata:    md,
	}
}

func (pc *PipelineContext) logger() *slog.Logger {
	if pc.Logger != nil {
		return pc.Logger
	}
	return slog.Default()
}

// Labels returns a copy of the alert's labels.
func (pc *PipelineContext) Labels() map[string]string {
	return pc.Alert.LabelsCopy()
}

// TargetPod resolves the pod named by the alert's labels. A nil executor
// with a nil error means the alert has no resolvable pod.
func (pc *PipelineContext) TargetPod(ctx context.Context) (PodExecutor, error) {
	ref, ok := pc.Alert.PodRef()
	if !ok || pc.Pods == nil {
		return nil, nil
	}
	return pc.Pods.ResolvePod(ctx, ref)
}

// AddEnrichment appends blocks produced by action to the alert's record.
func (pc *PipelineContext) AddEnrichment(action string, blocks []enrichment.Block) enrichment.Enrichment {
	e := enrichment.New(pc.Alert.Key(), pc.Alert.Name(), action, blocks)
	pc.mu.Lock()
	pc.enrichments = append(pc.enrichments, e)
	pc.mu.Unlock()
	return e
}

// Enrichments returns the enrichments recorded so far, in order.
func (pc *PipelineContext) Enrichments() []enrichment.Enrichment {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	out := make([]enrichment.Enrichment, len(pc.enrichments))
	copy(out, pc.enrichments)
	return out
}

// MergeStepOutput records a step's output under its name.
func (pc *PipelineContext) MergeStepOutput(stepName string, output map[string]any) {
	stepOut := make(map[string]any, len(output))
	maps.Copy(stepOut, output)
	pc.StepOutputs[stepName] = stepOut
}

// StepResult is the output of a single pipeline step execution.
type StepResult struct {
	// Output is the data produced by this step.
	Output map[string]any

	// Stop indicates the pipeline should stop after this step (success).
	Stop bool
}
