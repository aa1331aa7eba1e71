package engine

import (
	"context"
	"errors"
	"strconv"

	"github.com/probitas/probitas/pkg/definitions"
)

// initResource is Phase A's handling of one Resource entry: invoke the
// factory, bind the result under its name, and — if the produced value
// carries a disposal capability — push it onto the teardown stack so it
// is torn down in reverse creation order regardless of what happens
// later.
func (r *scenarioRun) initResource(res definitions.Resource) error {
	value, err := res.Factory(r.ctx, r.rc)
	if err != nil {
		return err
	}

	r.rc.BindResource(res.Name, value)

	if clean, ok := disposerOf(value); ok {
		r.teardown = append(r.teardown, teardownEntry{name: res.Name, clean: clean})
	}
	return nil
}

// initSetup is Phase A's handling of one Setup entry: invoke the hook; a
// Skip signal aborts straight to Phase D with status skipped, any other
// error aborts to Phase D with status failed, and a returned Cleanup (if
// any) is pushed onto the teardown stack in declaration order (so it
// tears down in reverse).
func (r *scenarioRun) initSetup(index int, setup definitions.Setup) (skipped bool, err error) {
	value, err := setup.Fn(r.ctx, r.rc)
	if err != nil {
		if errors.Is(err, definitions.ErrSkip) {
			r.skipReason = definitions.NewErrorObject(err)
			return true, nil
		}
		return false, err
	}

	if clean, ok := disposerOf(value); ok {
		r.teardown = append(r.teardown, teardownEntry{name: setupName(index), clean: clean})
	}
	return false, nil
}

// runTeardown pops the teardown stack in LIFO order, invoking each entry
// and collecting errors. Teardown always runs to completion: the first
// error it produces becomes the Scenario's error only if nothing already
// failed; later teardown errors are logged but never overwrite it.
func (r *scenarioRun) runTeardown() error {
	var first error
	for i := len(r.teardown) - 1; i >= 0; i-- {
		entry := r.teardown[i]
		if err := entry.clean(r.ctx); err != nil {
			wrapped := &definitions.CleanupError{Entry: entry.name, Err: err}
			if first == nil {
				first = wrapped
			} else {
				r.engine.logger.Error("teardown error after first failure",
					"entry", entry.name, "error", wrapped)
			}
		}
	}
	return first
}

func disposerOf(value any) (func(context.Context) error, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case definitions.CleanupFunc:
		return func(ctx context.Context) error { return v(ctx) }, true
	case func(context.Context) error:
		return v, true
	case definitions.Disposer:
		return v.Dispose, true
	default:
		return nil, false
	}
}

func setupName(index int) string {
	return "setup[" + strconv.Itoa(index) + "]"
}
