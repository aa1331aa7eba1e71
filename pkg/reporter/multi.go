package reporter

import (
	"context"

	"github.com/probitas/probitas/pkg/definitions"
)

// Multi fans one stream of hook calls out to every reporter in order. Each
// is invoked in turn, sequentially, so a slow or ordering-sensitive
// reporter never races another.
type Multi []Reporter

func (m Multi) OnRunStart(ctx context.Context, scenarios []definitions.ScenarioMetadata) error {
	for _, r := range m {
		if err := r.OnRunStart(ctx, scenarios); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) OnScenarioStart(ctx context.Context, scenario definitions.ScenarioMetadata) error {
	for _, r := range m {
		if err := r.OnScenarioStart(ctx, scenario); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) OnScenarioSkip(ctx context.Context, scenario definitions.ScenarioMetadata, reason string, durationMS int64) error {
	for _, r := range m {
		if err := r.OnScenarioSkip(ctx, scenario, reason, durationMS); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) OnStepStart(ctx context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata) error {
	for _, r := range m {
		if err := r.OnStepStart(ctx, scenario, step); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) OnStepEnd(ctx context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata, result definitions.StepResult) error {
	for _, r := range m {
		if err := r.OnStepEnd(ctx, scenario, step, result); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) OnStepError(ctx context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata, err *definitions.ErrorObject, durationMS int64) error {
	for _, r := range m {
		if hookErr := r.OnStepError(ctx, scenario, step, err, durationMS); hookErr != nil {
			return hookErr
		}
	}
	return nil
}

func (m Multi) OnScenarioEnd(ctx context.Context, scenario definitions.ScenarioMetadata, result definitions.ScenarioResult) error {
	for _, r := range m {
		if err := r.OnScenarioEnd(ctx, scenario, result); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) OnRunEnd(ctx context.Context, summary definitions.RunSummary) error {
	for _, r := range m {
		if err := r.OnRunEnd(ctx, summary); err != nil {
			return err
		}
	}
	return nil
}

var _ Reporter = Multi(nil)
