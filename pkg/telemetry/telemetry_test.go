package telemetry_test

import (
	"context"
	"testing"

	"github.com/probitas/probitas/pkg/telemetry"
)

func TestSetup_EmptyEndpointIsANoop(t *testing.T) {
	tracer, shutdown, err := telemetry.Setup(context.Background(), telemetry.Options{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if tracer == nil {
		t.Fatal("expected a non-nil tracer even without an endpoint configured")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected no-op shutdown to succeed, got %v", err)
	}
}

func TestSetup_WithEndpointBuildsAShutdownableProvider(t *testing.T) {
	tracer, shutdown, err := telemetry.Setup(context.Background(), telemetry.Options{
		Endpoint:    "127.0.0.1:4318",
		ServiceName: "probitas-test",
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if tracer == nil {
		t.Fatal("expected a non-nil tracer")
	}
	// No spans were ever started, so shutdown flushes nothing and must
	// not attempt to dial the (unreachable in this test) collector.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected shutdown with no recorded spans to succeed, got %v", err)
	}
}
