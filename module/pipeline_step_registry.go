package module

import (
	"fmt"
	"sort"
)

// StepFactory creates a PipelineStep from its name and config.
type StepFactory func(name string, config map[string]any) (PipelineStep, error)

// StepRegistry maps action type strings to factory functions.
type StepRegistry struct {
	factories map[string]StepFactory
}

// NewStepRegistry creates an empty StepRegistry.
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{
		factories: make(map[string]StepFactory),
	}
}

// NewDefaultStepRegistry returns a registry with every built-in action.
func NewDefaultStepRegistry() *StepRegistry {
	r := NewStepRegistry()
	r.Register(PodBashEnricherType, NewPodBashEnricherStepFactory())
	r.Register("pod_bash_enricher", NewPodBashEnricherStepFactory())
	r.Register(AlertLogType, NewAlertLogStepFactory())
	return r
}

// Register adds a step factory for the given type string.
func (r *StepRegistry) Register(stepType string, factory StepFactory) {
	r.factories[stepType] = factory
}

// Create instantiates a PipelineStep of the given type.
func (r *StepRegistry) Create(stepType, name string, config map[string]any) (PipelineStep, error) {
	factory, ok := r.factories[stepType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStepType, stepType)
	}
	if config == nil {
		config = map[string]any{}
	}
	return factory(name, config)
}

// Types returns all registered step type names, sorted.
func (r *StepRegistry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
