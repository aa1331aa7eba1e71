// Package reporter defines the contract between Scenario execution and
// observation (spec.md §4.3). A Reporter is a set of optional hooks; the
// Engine awaits each one before proceeding to keep per-scenario ordering
// deterministic, and a misbehaving Reporter is never allowed to crash the
// host.
package reporter

import (
	"context"

	"github.com/probitas/probitas/pkg/definitions"
)

// Reporter is the full hook set from spec.md §4.3. Embed Base to implement
// only the hooks you care about.
type Reporter interface {
	OnRunStart(ctx context.Context, scenarios []definitions.ScenarioMetadata) error
	OnScenarioStart(ctx context.Context, scenario definitions.ScenarioMetadata) error
	OnScenarioSkip(ctx context.Context, scenario definitions.ScenarioMetadata, reason string, durationMS int64) error
	OnStepStart(ctx context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata) error
	OnStepEnd(ctx context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata, result definitions.StepResult) error
	OnStepError(ctx context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata, err *definitions.ErrorObject, durationMS int64) error
	OnScenarioEnd(ctx context.Context, scenario definitions.ScenarioMetadata, result definitions.ScenarioResult) error
	OnRunEnd(ctx context.Context, summary definitions.RunSummary) error
}

// Base is a no-op implementation of every hook. Concrete reporters embed
// it and override only what they need.
type Base struct{}

func (Base) OnRunStart(context.Context, []definitions.ScenarioMetadata) error { return nil }
func (Base) OnScenarioStart(context.Context, definitions.ScenarioMetadata) error { return nil }
func (Base) OnScenarioSkip(context.Context, definitions.ScenarioMetadata, string, int64) error {
	return nil
}
func (Base) OnStepStart(context.Context, definitions.ScenarioMetadata, definitions.StepMetadata) error {
	return nil
}
func (Base) OnStepEnd(context.Context, definitions.ScenarioMetadata, definitions.StepMetadata, definitions.StepResult) error {
	return nil
}
func (Base) OnStepError(context.Context, definitions.ScenarioMetadata, definitions.StepMetadata, *definitions.ErrorObject, int64) error {
	return nil
}
func (Base) OnScenarioEnd(context.Context, definitions.ScenarioMetadata, definitions.ScenarioResult) error {
	return nil
}
func (Base) OnRunEnd(context.Context, definitions.RunSummary) error { return nil }

var _ Reporter = Base{}
