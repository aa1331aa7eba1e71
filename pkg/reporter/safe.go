package reporter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/probitas/probitas/pkg/definitions"
)

// Safe wraps r so that a panic or a returned error from any hook is
// logged and swallowed rather than propagated — spec.md §4.3: "A reporter
// must not raise; if it does, the Engine logs and continues."
func Safe(r Reporter, logger *slog.Logger) Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &safeReporter{inner: r, logger: logger}
}

type safeReporter struct {
	inner  Reporter
	logger *slog.Logger
}

func (s *safeReporter) guard(hook string, call func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("reporter hook panicked", "hook", hook, "panic", fmt.Sprint(rec))
			err = nil
		}
	}()
	if callErr := call(); callErr != nil {
		s.logger.Error("reporter hook returned an error", "hook", hook, "error", callErr)
	}
	return nil
}

func (s *safeReporter) OnRunStart(ctx context.Context, scenarios []definitions.ScenarioMetadata) error {
	return s.guard("onRunStart", func() error { return s.inner.OnRunStart(ctx, scenarios) })
}

func (s *safeReporter) OnScenarioStart(ctx context.Context, scenario definitions.ScenarioMetadata) error {
	return s.guard("onScenarioStart", func() error { return s.inner.OnScenarioStart(ctx, scenario) })
}

func (s *safeReporter) OnScenarioSkip(ctx context.Context, scenario definitions.ScenarioMetadata, reason string, durationMS int64) error {
	return s.guard("onScenarioSkip", func() error {
		return s.inner.OnScenarioSkip(ctx, scenario, reason, durationMS)
	})
}

func (s *safeReporter) OnStepStart(ctx context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata) error {
	return s.guard("onStepStart", func() error { return s.inner.OnStepStart(ctx, scenario, step) })
}

func (s *safeReporter) OnStepEnd(ctx context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata, result definitions.StepResult) error {
	return s.guard("onStepEnd", func() error { return s.inner.OnStepEnd(ctx, scenario, step, result) })
}

func (s *safeReporter) OnStepError(ctx context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata, errObj *definitions.ErrorObject, durationMS int64) error {
	return s.guard("onStepError", func() error {
		return s.inner.OnStepError(ctx, scenario, step, errObj, durationMS)
	})
}

func (s *safeReporter) OnScenarioEnd(ctx context.Context, scenario definitions.ScenarioMetadata, result definitions.ScenarioResult) error {
	return s.guard("onScenarioEnd", func() error { return s.inner.OnScenarioEnd(ctx, scenario, result) })
}

func (s *safeReporter) OnRunEnd(ctx context.Context, summary definitions.RunSummary) error {
	return s.guard("onRunEnd", func() error { return s.inner.OnRunEnd(ctx, summary) })
}

var _ Reporter = (*safeReporter)(nil)
