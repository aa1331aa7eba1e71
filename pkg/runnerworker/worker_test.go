package runnerworker_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/probitas/probitas/pkg/definitions"
	"github.com/probitas/probitas/pkg/logging"
	"github.com/probitas/probitas/pkg/protocol"
	"github.com/probitas/probitas/pkg/runnerworker"
)

func step(name string, fn definitions.StepFunc) definitions.Entry {
	return definitions.NewStepEntry(definitions.Step{Name: name, Fn: fn, Options: definitions.DefaultStepOptions()})
}

func mustScenario(t *testing.T, name string, entries []definitions.Entry) *definitions.Scenario {
	t.Helper()
	s, err := definitions.NewScenario(name, nil, definitions.DefaultStepOptions(), entries, definitions.SourceLocation{})
	if err != nil {
		t.Fatalf("building scenario: %v", err)
	}
	return s
}

// harness wires a Worker to an in-process parent over two io.Pipes, the
// same in-memory-fake style pool_test.go uses for the Pool's other end
// of the same protocol.
type harness struct {
	toWorker   *io.PipeWriter // parent writes here
	fromWorker *io.PipeReader // parent reads here

	parentReader *protocol.Reader
	parentWriter *protocol.Writer

	worker *runnerworker.Worker
	runErr chan error
}

func newHarness(loader runnerworker.Loader) *harness {
	parentToWorkerR, parentToWorkerW := io.Pipe()
	workerToParentR, workerToParentW := io.Pipe()

	h := &harness{
		toWorker:     parentToWorkerW,
		fromWorker:   workerToParentR,
		parentReader: protocol.NewReader(workerToParentR),
		parentWriter: protocol.NewWriter(parentToWorkerW),
		runErr:       make(chan error, 1),
	}
	h.worker = runnerworker.New(
		loader,
		protocol.NewReader(parentToWorkerR),
		protocol.NewWriter(workerToParentW),
		runnerworker.WithLogger(logging.NewDiscardLogger()),
	)
	return h
}

func (h *harness) start(ctx context.Context) {
	go func() { h.runErr <- h.worker.Run(ctx) }()
}

func (h *harness) expectReady(t *testing.T) {
	t.Helper()
	msg, err := h.parentReader.Next()
	if err != nil {
		t.Fatalf("reading ready: %v", err)
	}
	if msg.Type != protocol.TypeReady {
		t.Fatalf("expected ready, got %s", msg.Type)
	}
}

func (h *harness) sendRun(t *testing.T, payload protocol.RunPayload) {
	t.Helper()
	if err := h.parentWriter.Write(protocol.TypeRun, payload); err != nil {
		t.Fatalf("sending run: %v", err)
	}
}

func TestWorker_AnnouncesReadyOnStartup(t *testing.T) {
	h := newHarness(runnerworker.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.start(ctx)
	h.expectReady(t)
}

func TestWorker_RunsScenarioAndForwardsEvents(t *testing.T) {
	reg := runnerworker.NewRegistry()
	scenario := mustScenario(t, "checkout flow", []definitions.Entry{
		step("create order", func(context.Context, *definitions.Context) (any, error) {
			return map[string]any{"orderId": 1}, nil
		}),
	})
	reg.Register("checkout_test.go", scenario)

	h := newHarness(reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.start(ctx)
	h.expectReady(t)

	h.sendRun(t, protocol.RunPayload{TaskID: "task-1", FilePath: "checkout_test.go", ScenarioIndex: 0})

	var sawScenarioStart, sawStepStart, sawStepEnd, sawScenarioEnd, sawResult bool
	var resultPayload protocol.ResultPayload

	deadline := time.After(2 * time.Second)
	for !sawResult {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the full event sequence")
		default:
		}
		msg, err := h.parentReader.Next()
		if err != nil {
			t.Fatalf("reading event: %v", err)
		}
		switch msg.Type {
		case protocol.TypeScenarioStart:
			sawScenarioStart = true
		case protocol.TypeStepStart:
			sawStepStart = true
		case protocol.TypeStepEnd:
			sawStepEnd = true
		case protocol.TypeScenarioEnd:
			sawScenarioEnd = true
		case protocol.TypeResult:
			if err := protocol.Decode(msg.Line, &resultPayload); err != nil {
				t.Fatalf("decoding result: %v", err)
			}
			sawResult = true
		}
	}

	if !sawScenarioStart || !sawStepStart || !sawStepEnd || !sawScenarioEnd {
		t.Fatalf("missing events: start=%v stepStart=%v stepEnd=%v end=%v",
			sawScenarioStart, sawStepStart, sawStepEnd, sawScenarioEnd)
	}
	if resultPayload.TaskID != "task-1" {
		t.Errorf("expected taskId task-1, got %q", resultPayload.TaskID)
	}
	if resultPayload.Result.Status != definitions.StatusPassed {
		t.Errorf("expected passed, got %s", resultPayload.Result.Status)
	}
}

func TestWorker_UnknownFileReportsLoadError(t *testing.T) {
	h := newHarness(runnerworker.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.start(ctx)
	h.expectReady(t)

	h.sendRun(t, protocol.RunPayload{TaskID: "task-2", FilePath: "missing.go", ScenarioIndex: 0})

	msg, err := h.parentReader.Next()
	if err != nil {
		t.Fatalf("reading error message: %v", err)
	}
	if msg.Type != protocol.TypeError {
		t.Fatalf("expected error message, got %s", msg.Type)
	}
	var payload protocol.ErrorPayload
	if err := protocol.Decode(msg.Line, &payload); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if payload.TaskID != "task-2" {
		t.Errorf("expected taskId task-2, got %q", payload.TaskID)
	}
	if payload.Error == nil || payload.Error.Name != "LoadError" {
		t.Errorf("expected a LoadError, got %+v", payload.Error)
	}
}

func TestWorker_TerminateStopsRunLoop(t *testing.T) {
	h := newHarness(runnerworker.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.start(ctx)
	h.expectReady(t)

	if err := h.parentWriter.Write(protocol.TypeTerminate, nil); err != nil {
		t.Fatalf("sending terminate: %v", err)
	}

	select {
	case err := <-h.runErr:
		if err != nil {
			t.Fatalf("expected Run to return nil on terminate, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after terminate")
	}
}
