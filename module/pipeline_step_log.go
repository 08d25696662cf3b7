package module

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/remediation/enrichment"
)

// AlertLogType is the registry name of AlertLogStep.
const AlertLogType = "alert_log"

// AlertLogStep logs a label-templated message at a specified level and can
// attach it to the alert as a markdown block.
type AlertLogStep struct {
	name    string
	level   slog.Level
	message string
	enrich  bool
}

// NewAlertLogStepFactory returns a StepFactory that creates AlertLogStep instances.
func NewAlertLogStepFactory() StepFactory {
	return func(name string, config map[string]any) (PipelineStep, error) {
		levelStr, _ := config["level"].(string)
		if levelStr == "" {
			levelStr = "info"
		}

		var level slog.Level
		switch levelStr {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			return nil, fmt.Errorf("%s step %q: invalid level %q (expected debug, info, warn, or error)", AlertLogType, name, levelStr)
		}

		message, _ := config["message"].(string)
		if message == "" {
			return nil, fmt.Errorf("%s step %q: 'message' is required", AlertLogType, name)
		}

		enrich, _ := config["enrich"].(bool)

		return &AlertLogStep{
			name:    name,
			level:   level,
			message: message,
			enrich:  enrich,
		}, nil
	}
}

// Name returns the step name.
func (s *AlertLogStep) Name() string { return s.name }

// Execute renders the message with the alert labels and logs it.
func (s *AlertLogStep) Execute(ctx context.Context, pc *PipelineContext) (*StepResult, error) {
	msg := RenderCommand(s.message, pc.Labels())

	pc.logger().Log(ctx, s.level, msg, "step", s.name, "alert", pc.Alert.Name())

	if s.enrich {
		pc.AddEnrichment(s.name, []enrichment.Block{enrichment.Markdown(msg)})
	}
	return &StepResult{Output: map[string]any{"message": msg}}, nil
}
