package module

import "context"

// PipelineStep is a single remediation action in a playbook.
type PipelineStep interface {
	// Name returns the step's unique name within the playbook.
	Name() string

	// Execute runs the step against the alert carried by pc. Enrichments
	// are attached through pc.AddEnrichment.
	Execute(ctx context.Context, pc *PipelineContext) (*StepResult, error)
}
