// Package engine implements the single-scenario executor (spec.md §4.2):
// resources and setups are initialized interleaved with steps by
// declaration order, steps are attempted under timeout/retry control, and
// teardown always runs in reverse creation order.
package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/probitas/probitas/pkg/definitions"
	"github.com/probitas/probitas/pkg/reporter"
)

// Engine executes exactly one Scenario end to end and emits lifecycle
// events to a Reporter. It holds no per-run state — a single Engine value
// is safe to reuse (even concurrently) across Scenario runs, since all
// mutable state for one run lives in the teardown stack and Context
// built inside Run.
type Engine struct {
	defaults definitions.StepOptions
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaults overrides the engine-level default StepOptions that
// scenario.Options and step.Options are merged over.
func WithDefaults(opts definitions.StepOptions) Option {
	return func(e *Engine) { e.defaults = opts }
}

// WithTracer attaches an OpenTelemetry tracer; each Scenario run becomes
// one span and each step attempt a child span. Omitting this leaves the
// Engine fully functional — otel.Tracer falls back to a no-op provider
// until pkg/telemetry installs a real one.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithLogger attaches a structured logger used for engine-internal
// diagnostics (never for scenario/step lifecycle, which is the Reporter's
// job).
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New builds an Engine. Engine defaults are spec.md's 30s timeout /
// max_attempts=1 / linear backoff unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		defaults: definitions.DefaultStepOptions(),
		tracer:   otel.Tracer("github.com/probitas/probitas/pkg/engine"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// teardownEntry is one closure in the LIFO teardown stack built during
// forward execution, tagged with a name for error attribution and
// reporting.
type teardownEntry struct {
	name  string
	clean func(context.Context) error
}

// Run executes scenario to completion. ctx carries external cancellation
// (spec.md §5 source (b)/(c)): cancelling ctx fires the Scenario's
// CancellationToken exactly like a scenario-wide timeout would.
func (e *Engine) Run(ctx context.Context, scenario *definitions.Scenario, rep reporter.Reporter) definitions.ScenarioResult {
	if rep == nil {
		rep = reporter.Base{}
	}
	rep = reporter.Safe(rep, e.logger)

	runCtx, span := e.tracer.Start(ctx, "scenario:"+scenario.Name,
		trace.WithAttributes(attribute.String("probitas.scenario.name", scenario.Name)))
	defer span.End()

	meta := scenario.Metadata()
	start := time.Now()

	scenarioToken := definitions.NewCancellationToken()
	defer scenarioToken.Cancel("scenario run complete")
	go func() {
		select {
		case <-runCtx.Done():
			scenarioToken.Cancel(runCtx.Err().Error())
		case <-scenarioToken.Done():
		}
	}()

	rc := definitions.NewContext(scenarioToken)

	_ = rep.OnScenarioStart(runCtx, meta)

	run := &scenarioRun{
		engine:   e,
		ctx:      runCtx,
		rep:      rep,
		scenario: scenario,
		meta:     meta,
		rc:       rc,
		token:    scenarioToken,
		span:     span,
	}

	result := run.execute()
	result.DurationMS = time.Since(start).Milliseconds()

	if result.Status == definitions.StatusSkipped {
		reason := ""
		if result.Error != nil {
			reason = result.Error.Message
		}
		_ = rep.OnScenarioSkip(runCtx, meta, reason, result.DurationMS)
	}
	_ = rep.OnScenarioEnd(runCtx, meta, result)

	switch result.Status {
	case definitions.StatusFailed:
		span.SetStatus(codes.Error, "scenario failed")
	default:
		span.SetStatus(codes.Ok, "")
	}

	return result
}

// scenarioRun holds the mutable state of one Run call.
type scenarioRun struct {
	engine   *Engine
	ctx      context.Context
	rep      reporter.Reporter
	scenario *definitions.Scenario
	meta     definitions.ScenarioMetadata
	rc       *definitions.Context
	token    *definitions.CancellationToken
	span     trace.Span

	teardown   []teardownEntry
	steps      []definitions.StepResult
	skipReason *definitions.ErrorObject
}

func (r *scenarioRun) execute() definitions.ScenarioResult {
	var engineErr error
	var skipped bool

	for i, entry := range r.scenario.Entries {
		switch entry.Kind {
		case definitions.EntryResource:
			if err := r.initResource(entry.Resource); err != nil {
				engineErr = &definitions.ResourceError{Resource: entry.Resource.Name, Err: err}
			}
		case definitions.EntrySetup:
			skip, err := r.initSetup(i, entry.Setup)
			if skip {
				skipped = true
			} else if err != nil {
				engineErr = &definitions.SetupError{Index: i, Err: err}
			}
		case definitions.EntryStep:
			if engineErr != nil || skipped {
				continue
			}
			sr := r.runStep(entry.Step)
			r.steps = append(r.steps, sr)
			if sr.Status == definitions.StatusFailed {
				// Phase B, rule 6: stop processing further steps.
				engineErr = stepFailureSentinel{}
			}
		}
		if engineErr != nil || skipped {
			break
		}
	}

	teardownErr := r.runTeardown()

	status := definitions.StatusPassed
	var resultErr *definitions.ErrorObject

	switch {
	case skipped:
		status = definitions.StatusSkipped
		resultErr = r.skipReason
	case engineErr != nil:
		status = definitions.StatusFailed
		if _, isStepFailure := engineErr.(stepFailureSentinel); !isStepFailure {
			resultErr = definitions.NewErrorObject(engineErr)
		}
	}

	if status != definitions.StatusFailed && teardownErr != nil {
		status = definitions.StatusFailed
		resultErr = definitions.NewErrorObject(teardownErr)
	}

	return definitions.ScenarioResult{
		Metadata: r.meta,
		Status:   status,
		Steps:    r.steps,
		Error:    resultErr,
	}
}

// stepFailureSentinel marks "stop the walk, a step already failed and
// recorded itself" without itself becoming the ScenarioResult.Error (step
// failures are an expected outcome recorded on StepResult, not surfaced as
// an engine error — spec.md §4.2 "Error handling policies").
type stepFailureSentinel struct{}

func (stepFailureSentinel) Error() string { return "step failed" }
