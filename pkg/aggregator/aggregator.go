// Package aggregator collects per-Scenario results from a run and
// computes the RunSummary and exit code spec.md §4.6 defines.
package aggregator

import (
	"sync"
	"time"

	"github.com/probitas/probitas/pkg/definitions"
)

// Exit codes, spec.md §4.6. CLI usage/argument errors are signalled by
// the command layer itself (outside the core) and never produced here.
const (
	ExitPassed      = 0
	ExitFailed      = 1
	ExitUsage       = 2
	ExitNoScenarios = 4
)

// Aggregator accumulates ScenarioResults as a run progresses. Safe for
// concurrent use: the Pool delivers results from multiple in-flight
// workers at once.
type Aggregator struct {
	mu      sync.Mutex
	results []definitions.ScenarioResult
	start   time.Time
}

// New builds an Aggregator whose run clock starts now.
func New() *Aggregator {
	return &Aggregator{start: time.Now()}
}

// Record appends one completed Scenario's result. Scenarios discarded by
// a max_failures cancellation (spec.md §4.4/§4.6, "outstanding queued
// tasks are discarded from the summary") are simply never recorded.
func (a *Aggregator) Record(result definitions.ScenarioResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result)
}

// Summary computes the RunSummary over every Scenario recorded so far.
// Safe to call mid-run for a progress snapshot as well as once at the
// end for onRunEnd.
func (a *Aggregator) Summary() definitions.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := definitions.RunSummary{
		Total:      len(a.results),
		DurationMS: time.Since(a.start).Milliseconds(),
		Scenarios:  append([]definitions.ScenarioResult(nil), a.results...),
	}
	for _, r := range a.results {
		switch r.Status {
		case definitions.StatusPassed:
			summary.Passed++
		case definitions.StatusFailed:
			summary.Failed++
		case definitions.StatusSkipped:
			summary.Skipped++
		}
	}
	return summary
}

// ExitCode decides the process exit status for a finished RunSummary
// (spec.md §4.6): 0 if nothing failed and at least one Scenario ran, 1 if
// any Scenario failed, 4 if the selector matched no scenarios at all
// (Total == 0, the only way a RunSummary with no recorded results and no
// prior failure can occur — a usage/CLI error is decided by the command
// layer before the core ever produces a summary).
func ExitCode(summary definitions.RunSummary) int {
	if summary.Total == 0 {
		return ExitNoScenarios
	}
	if summary.Failed > 0 {
		return ExitFailed
	}
	return ExitPassed
}
