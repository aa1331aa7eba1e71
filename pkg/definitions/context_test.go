package definitions

import (
	"testing"
	"time"
)

func TestContextRecordStepSequencing(t *testing.T) {
	ctx := NewContext(NewCancellationToken())

	if ctx.Previous() != nil {
		t.Fatalf("expected nil previous before any step, got %v", ctx.Previous())
	}

	ctx.RecordStep(1)
	if ctx.Previous() != 1 {
		t.Errorf("expected previous=1, got %v", ctx.Previous())
	}
	if ctx.Index() != 1 {
		t.Errorf("expected index=1, got %d", ctx.Index())
	}

	ctx.RecordStep("two")
	if got := ctx.Results(); len(got) != 2 || got[0] != 1 || got[1] != "two" {
		t.Errorf("expected results=[1 two], got %v", got)
	}
	if ctx.Previous() != "two" {
		t.Errorf("expected previous=two, got %v", ctx.Previous())
	}
}

func TestContextBindResource(t *testing.T) {
	ctx := NewContext(NewCancellationToken())
	ctx.BindResource("db", 42)

	v, ok := ctx.Resource("db")
	if !ok || v != 42 {
		t.Fatalf("expected resource db=42, got %v, %v", v, ok)
	}
	if _, ok := ctx.Resource("missing"); ok {
		t.Error("expected missing resource to report ok=false")
	}
}

func TestCancellationTokenDerive(t *testing.T) {
	parent := NewCancellationToken()
	child := parent.Derive()

	if child.IsCancelled() {
		t.Fatal("child should not start cancelled")
	}

	parent.Cancel("parent timeout")

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child did not observe parent cancellation in time")
	}

	if !child.IsCancelled() {
		t.Error("expected child.IsCancelled() == true")
	}
	if child.Reason() != "parent timeout" {
		t.Errorf("expected reason to propagate, got %q", child.Reason())
	}
}

func TestCancellationTokenCancelIdempotent(t *testing.T) {
	tok := NewCancellationToken()
	tok.Cancel("first")
	tok.Cancel("second")
	if tok.Reason() != "first" {
		t.Errorf("expected first reason to stick, got %q", tok.Reason())
	}
}
