package runnerworker

import (
	"context"

	"github.com/probitas/probitas/pkg/definitions"
	"github.com/probitas/probitas/pkg/protocol"
	"github.com/probitas/probitas/pkg/reporter"
)

// forwardingReporter relays the Engine's scenario-scoped lifecycle hooks
// across the worker protocol as the parent's Pool expects them
// (spec.md §4.5). Hooks the protocol has no message for are left as
// Base's no-ops: a worker runs exactly one Scenario per task, so
// onRunStart/onRunEnd never apply here, onStepError is a shortcut the
// Pool can derive from onStepEnd's StepResult, and onScenarioEnd already
// carries a skipped ScenarioResult when onScenarioSkip would have fired.
type forwardingReporter struct {
	reporter.Base
	taskID string
	writer *protocol.Writer
}

func (r *forwardingReporter) OnScenarioStart(_ context.Context, scenario definitions.ScenarioMetadata) error {
	return r.writer.Write(protocol.TypeScenarioStart, protocol.ScenarioEventPayload{
		TaskID:   r.taskID,
		Scenario: scenario,
	})
}

func (r *forwardingReporter) OnScenarioEnd(_ context.Context, scenario definitions.ScenarioMetadata, result definitions.ScenarioResult) error {
	return r.writer.Write(protocol.TypeScenarioEnd, protocol.ScenarioEventPayload{
		TaskID:   r.taskID,
		Scenario: scenario,
		Result:   &result,
	})
}

func (r *forwardingReporter) OnStepStart(_ context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata) error {
	return r.writer.Write(protocol.TypeStepStart, protocol.StepEventPayload{
		TaskID:   r.taskID,
		Scenario: scenario,
		Step:     step,
	})
}

func (r *forwardingReporter) OnStepEnd(_ context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata, result definitions.StepResult) error {
	return r.writer.Write(protocol.TypeStepEnd, protocol.StepEventPayload{
		TaskID:   r.taskID,
		Scenario: scenario,
		Step:     step,
		Result:   &result,
	})
}

var _ reporter.Reporter = (*forwardingReporter)(nil)
