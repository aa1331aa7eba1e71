package definitions

import "time"

// Backoff selects the delay strategy between retry attempts.
type Backoff string

const (
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// RetryOptions controls how many times a Step is attempted and how long to
// wait between attempts. MaxAttempts = 1 means no retry: exactly one
// execution.
type RetryOptions struct {
	MaxAttempts int     `json:"maxAttempts"`
	Backoff     Backoff `json:"backoff"`
}

// DefaultRetryOptions is what a Step gets when nothing overrides it.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{MaxAttempts: 1, Backoff: BackoffLinear}
}

// StepOptions bundles the per-step execution knobs. A Scenario carries a set
// of StepOptions too, used as the default a Step's own options are merged
// over (spec.md §4.2: step.options over scenario.options over engine
// defaults).
type StepOptions struct {
	TimeoutMS int          `json:"timeoutMs"`
	Retry     RetryOptions `json:"retry"`
}

// DefaultStepOptions is the engine-level floor every merge starts from.
func DefaultStepOptions() StepOptions {
	return StepOptions{TimeoutMS: 30000, Retry: DefaultRetryOptions()}
}

// Timeout returns TimeoutMS as a time.Duration.
func (o StepOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutMS) * time.Millisecond
}

// Merge layers o over base: any zero-valued field of o falls back to base's
// value. Used to compute effective options as
// merge(step.options, scenario.options, engine defaults).
func (o StepOptions) Merge(base StepOptions) StepOptions {
	out := base
	if o.TimeoutMS != 0 {
		out.TimeoutMS = o.TimeoutMS
	}
	if o.Retry.MaxAttempts != 0 {
		out.Retry.MaxAttempts = o.Retry.MaxAttempts
	}
	if o.Retry.Backoff != "" {
		out.Retry.Backoff = o.Retry.Backoff
	}
	return out
}

// RetryDelay computes the backoff delay before attempt number `attempt`
// (1-based: the delay waited after attempt 1 failed, before attempt 2
// starts). The 1000ms base is the spec's hard-coded default; callers that
// need a different base should scale the returned duration.
func RetryDelay(backoff Backoff, attempt int) time.Duration {
	switch backoff {
	case BackoffExponential:
		return time.Duration(1<<uint(attempt-1)) * time.Second
	default: // linear
		return time.Duration(attempt) * time.Second
	}
}
