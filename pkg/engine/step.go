package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/probitas/probitas/pkg/definitions"
)

// runStep drives one Step entry through Phase B's attempt loop and
// returns its StepResult. It never returns a Go error: a failing step is
// an expected outcome, fully captured on the result.
func (r *scenarioRun) runStep(step definitions.Step) definitions.StepResult {
	meta := step.Metadata()
	_ = r.rep.OnStepStart(r.ctx, r.meta, meta)

	effective := step.Options.Merge(r.scenario.Options.Merge(r.engine.defaults))
	start := time.Now()

	var (
		value      any
		stepErr    error
		attemptNum int
	)

	maxAttempts := effective.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptNum = attempt
		value, stepErr = r.attemptOnce(step, effective, attempt)
		if stepErr == nil {
			break
		}
		if errors.As(stepErr, new(*definitions.CancelledError)) {
			// External/scenario cancellation reached us: abort immediately,
			// no further attempts (spec.md §4.2 step 3, backoff branch).
			break
		}
		if attempt == maxAttempts {
			break
		}
		if !r.sleepBackoff(effective.Retry.Backoff, attempt) {
			// Cancelled during the backoff delay itself.
			stepErr = &definitions.CancelledError{Step: step.Name, Reason: r.token.Reason()}
			break
		}
	}

	durationMS := time.Since(start).Milliseconds()

	var result definitions.StepResult
	if stepErr == nil {
		result = definitions.StepResult{Metadata: meta, Status: definitions.StatusPassed, DurationMS: durationMS, Value: value}
		r.rc.RecordStep(value)
	} else {
		errObj := definitions.NewErrorObject(stepErr)
		result = definitions.StepResult{Metadata: meta, Status: definitions.StatusFailed, DurationMS: durationMS, Error: errObj}
		r.rc.RecordStep(nil)
		_ = r.rep.OnStepError(r.ctx, r.meta, meta, errObj, durationMS)
	}

	_ = r.rep.OnStepEnd(r.ctx, r.meta, meta, result)
	_ = attemptNum
	return result
}

// attemptOnce runs step.Fn exactly once under a per-attempt timeout
// derived from the scenario's cancellation token, and abandons (but does
// not wait on) a non-cooperative call once the deadline passes — spec.md
// §4.2 Phase C: "the orphaned work may continue until it naturally
// finishes (best-effort)".
func (r *scenarioRun) attemptOnce(step definitions.Step, opts definitions.StepOptions, attempt int) (any, error) {
	attemptCtx, span := r.engine.tracer.Start(r.ctx, "step:"+step.Name,
		trace.WithAttributes(
			attribute.String("probitas.step.name", step.Name),
			attribute.Int("probitas.step.attempt", attempt),
		))
	defer span.End()

	attemptToken := r.token.Derive()
	defer attemptToken.Cancel("attempt complete")
	timer := time.AfterFunc(opts.Timeout(), func() {
		attemptToken.Cancel("timeout")
	})
	defer timer.Stop()

	stepCtx, cancel := contextFromToken(attemptCtx, attemptToken)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resultCh <- outcome{err: panicError{rec}}
			}
		}()
		v, err := step.Fn(stepCtx, r.rc)
		resultCh <- outcome{value: v, err: err}
	}()

	select {
	case out := <-resultCh:
		if out.err != nil {
			span.SetStatus(codes.Error, out.err.Error())
			return nil, out.err
		}
		return out.value, nil
	case <-stepCtx.Done():
		var err error
		if attemptToken.Reason() == "timeout" {
			err = &definitions.TimeoutError{Step: step.Name, TimeoutMS: opts.TimeoutMS}
		} else {
			err = &definitions.CancelledError{Step: step.Name, Reason: r.token.Reason()}
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
}

// sleepBackoff waits the configured retry delay, returning false if
// cancellation fires before the delay elapses (spec.md §4.2: "Delay itself
// is cancellable; if the parent cancels, abort immediately").
func (r *scenarioRun) sleepBackoff(backoff definitions.Backoff, attempt int) bool {
	delay := definitions.RetryDelay(backoff, attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.token.Done():
		return false
	}
}

// contextFromToken returns a context.Context derived from parent that is
// additionally cancelled the moment token fires.
func contextFromToken(parent context.Context, token *definitions.CancellationToken) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := make(chan struct{})
	go func() {
		select {
		case <-token.Done():
			cancel()
		case <-stop:
		}
	}()
	return ctx, func() {
		close(stop)
		cancel()
	}
}

// panicError renders a recovered panic value as an error, so a step that
// panics is recorded as a normal StepFailure rather than crashing the
// worker.
type panicError struct{ value any }

func (p panicError) Error() string {
	return "step panicked: " + errString(p.value)
}

func errString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
