package module

import "errors"

// ErrUnknownStepType is returned when a playbook names an action type that
// is not registered.
var ErrUnknownStepType = errors.New("unknown step type")
