package aggregator_test

import (
	"testing"

	"github.com/probitas/probitas/pkg/aggregator"
	"github.com/probitas/probitas/pkg/definitions"
)

func result(status definitions.Status) definitions.ScenarioResult {
	return definitions.ScenarioResult{Status: status}
}

func TestAggregator_CountsByStatus(t *testing.T) {
	a := aggregator.New()
	a.Record(result(definitions.StatusPassed))
	a.Record(result(definitions.StatusPassed))
	a.Record(result(definitions.StatusFailed))
	a.Record(result(definitions.StatusSkipped))

	summary := a.Summary()
	if summary.Total != 4 || summary.Passed != 2 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Scenarios) != 4 {
		t.Fatalf("expected 4 scenario results, got %d", len(summary.Scenarios))
	}
}

func TestExitCode_NoScenariosSelected(t *testing.T) {
	summary := aggregator.New().Summary()
	if got := aggregator.ExitCode(summary); got != aggregator.ExitNoScenarios {
		t.Errorf("expected exit %d, got %d", aggregator.ExitNoScenarios, got)
	}
}

func TestExitCode_AllPassed(t *testing.T) {
	a := aggregator.New()
	a.Record(result(definitions.StatusPassed))
	a.Record(result(definitions.StatusSkipped))
	if got := aggregator.ExitCode(a.Summary()); got != aggregator.ExitPassed {
		t.Errorf("expected exit %d, got %d", aggregator.ExitPassed, got)
	}
}

func TestExitCode_AnyFailure(t *testing.T) {
	a := aggregator.New()
	a.Record(result(definitions.StatusPassed))
	a.Record(result(definitions.StatusFailed))
	if got := aggregator.ExitCode(a.Summary()); got != aggregator.ExitFailed {
		t.Errorf("expected exit %d, got %d", aggregator.ExitFailed, got)
	}
}

func TestAggregator_DiscardedTasksAreNeverRecorded(t *testing.T) {
	// Simulates a max_failures cancellation: only the two completed
	// scenarios are recorded, the discarded queued ones never are.
	a := aggregator.New()
	a.Record(result(definitions.StatusFailed))
	a.Record(result(definitions.StatusFailed))
	summary := a.Summary()
	if summary.Total != 2 {
		t.Fatalf("expected discarded tasks excluded from total, got %d", summary.Total)
	}
}
