package definitions

import (
	"testing"
	"time"
)

func TestStepOptionsMerge(t *testing.T) {
	base := DefaultStepOptions()

	cases := []struct {
		name   string
		layer  StepOptions
		want   StepOptions
	}{
		{
			name:  "empty layer keeps base",
			layer: StepOptions{},
			want:  base,
		},
		{
			name:  "timeout overridden",
			layer: StepOptions{TimeoutMS: 5000},
			want:  StepOptions{TimeoutMS: 5000, Retry: base.Retry},
		},
		{
			name:  "retry overridden",
			layer: StepOptions{Retry: RetryOptions{MaxAttempts: 3, Backoff: BackoffExponential}},
			want:  StepOptions{TimeoutMS: base.TimeoutMS, Retry: RetryOptions{MaxAttempts: 3, Backoff: BackoffExponential}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.layer.Merge(base)
			if got != tc.want {
				t.Errorf("Merge() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	cases := []struct {
		backoff Backoff
		attempt int
		want    time.Duration
	}{
		{BackoffLinear, 1, 1 * time.Second},
		{BackoffLinear, 2, 2 * time.Second},
		{BackoffLinear, 3, 3 * time.Second},
		{BackoffExponential, 1, 1 * time.Second},
		{BackoffExponential, 2, 2 * time.Second},
		{BackoffExponential, 3, 4 * time.Second},
	}
	for _, tc := range cases {
		if got := RetryDelay(tc.backoff, tc.attempt); got != tc.want {
			t.Errorf("RetryDelay(%s, %d) = %v, want %v", tc.backoff, tc.attempt, got, tc.want)
		}
	}
}
