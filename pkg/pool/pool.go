// Package pool implements the multi-scenario scheduler (spec.md §4.4):
// it dispatches Scenarios to isolated worker subprocesses, correlates
// their protocol messages by taskId, replaces crashed workers, and
// enforces a max_failures cancellation threshold. All state
// transitions happen under a single mutex, matching spec.md §5's
// "owned by a single coordinator" requirement without requiring a
// dedicated actor goroutine.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/probitas/probitas/pkg/definitions"
	"github.com/probitas/probitas/pkg/protocol"
)

// ErrPoolClosed is returned by Execute once Close has been called, and
// delivered to any task still queued when Close runs.
var ErrPoolClosed = errors.New("pool closed")

// ErrMaxFailuresReached is delivered to queued/new tasks once the
// configured failure threshold has been hit.
var ErrMaxFailuresReached = errors.New("max_failures reached, pool is cancelling")

// Task describes one Scenario dispatch (spec.md §4.5's "run" message,
// minus the taskId which the Pool assigns).
type Task struct {
	FilePath      string
	ScenarioIndex int
	TimeoutMS     int64
	LogLevel      string
}

// Callbacks receives the intermediate lifecycle events a worker
// forwards for one task; Execute blocks for the terminal outcome, but
// callers that want streaming behavior (a Reporter bridge) observe it
// here. Any nil field is simply skipped.
type Callbacks struct {
	OnScenarioStart func(definitions.ScenarioMetadata)
	OnStepStart     func(definitions.ScenarioMetadata, definitions.StepMetadata)
	OnStepEnd       func(definitions.ScenarioMetadata, definitions.StepMetadata, definitions.StepResult)
}

// Outcome is a task's terminal result: exactly one of Result/Err is
// meaningful (Err set means the task never produced a ScenarioResult
// at all — a load failure or a worker crash, not a failed Scenario).
type Outcome struct {
	Result definitions.ScenarioResult
	Err    error
}

// Spawner starts one worker subprocess and returns a handle to its
// protocol streams. Production code uses ProcessSpawner.Spawn; tests
// substitute an in-memory fake wired with io.Pipe.
type Spawner func(ctx context.Context) (WorkerHandle, error)

// WorkerHandle is everything the Pool needs from a live worker
// process: line-delimited JSON I/O plus lifecycle control.
type WorkerHandle interface {
	Reader() *protocol.Reader
	Writer() *protocol.Writer
	CloseStdin() error
	Wait() error
	Kill() error
}

// Option configures a Pool.
type Option func(*Pool)

// WithMaxSize overrides the default worker cap (host CPU count).
func WithMaxSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxSize = n
		}
	}
}

// WithMaxFailures sets the threshold from spec.md §4.6: once this many
// tasks have failed (a Scenario that finished with status failed, a
// worker crash, or a load error), the Pool stops accepting new work
// and cancels everything in flight.
func WithMaxFailures(n int) Option {
	return func(p *Pool) { p.maxFailures = n }
}

// WithLogger attaches a logger for pool-internal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// WithTerminationGrace bounds how long Close waits for a worker to
// exit after "terminate" before killing it outright.
func WithTerminationGrace(d time.Duration) Option {
	return func(p *Pool) { p.terminationGrace = d }
}

// Pool schedules Tasks across a bounded set of worker subprocesses.
type Pool struct {
	spawner          Spawner
	maxSize          int
	maxFailures      int
	logger           *slog.Logger
	terminationGrace time.Duration

	mu        sync.Mutex
	workers   map[string]*workerState
	spawning  int // workers reserved against maxSize but not yet registered
	idle      []string
	queue     []*pendingTask
	pending   map[string]*pendingTask
	failures  int
	closed    bool
	cancelled bool
}

type workerState struct {
	id      string
	handle  WorkerHandle
	current *pendingTask
}

type pendingTask struct {
	id   string
	task Task
	cb   Callbacks
	done chan Outcome
}

// New builds a Pool. maxSize of 0 (the Option default) falls back to
// runtime.NumCPU, matching spec.md §4.4's "0 ⇒ default to host CPU
// count".
func New(spawner Spawner, opts ...Option) *Pool {
	p := &Pool{
		spawner:          spawner,
		maxSize:          runtime.NumCPU(),
		logger:           slog.Default(),
		terminationGrace: 5 * time.Second,
		workers:          make(map[string]*workerState),
		pending:          make(map[string]*pendingTask),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute schedules task and blocks until its terminal Outcome, or
// until ctx is cancelled (in which case the task's eventual result, if
// any, is discarded by the caller — the worker side still completes
// it, since the protocol has no per-task abort message and a worker
// serves one scenario at a time to completion).
func (p *Pool) Execute(ctx context.Context, task Task, cb Callbacks) (definitions.ScenarioResult, error) {
	pt := &pendingTask{id: uuid.NewString(), task: task, cb: cb, done: make(chan Outcome, 1)}

	if err := p.submit(pt); err != nil {
		return definitions.ScenarioResult{}, err
	}

	select {
	case out := <-pt.done:
		return out.Result, out.Err
	case <-ctx.Done():
		return definitions.ScenarioResult{}, ctx.Err()
	}
}

func (p *Pool) submit(pt *pendingTask) error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.cancelled {
		p.mu.Unlock()
		return ErrMaxFailuresReached
	}

	p.pending[pt.id] = pt

	if len(p.idle) > 0 {
		id := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		w := p.workers[id]
		w.current = pt
		p.mu.Unlock()
		p.dispatch(w, pt)
		return nil
	}

	if len(p.workers)+p.spawning < p.maxSize {
		p.spawning++
		p.mu.Unlock()
		go p.spawnAndDispatch(pt)
		return nil
	}

	p.queue = append(p.queue, pt)
	p.mu.Unlock()
	return nil
}

// spawnAndDispatch creates a new worker and waits for its ready
// handshake outside the coordinator lock (subprocess start is slow and
// must not stall unrelated scheduling decisions), then registers it
// and dispatches pt.
func (p *Pool) spawnAndDispatch(pt *pendingTask) {
	handle, err := p.spawner(context.Background())
	if err != nil {
		p.failTask(pt, fmt.Errorf("spawning worker: %w", err))
		return
	}

	if err := p.awaitReady(handle); err != nil {
		_ = handle.Kill()
		p.failTask(pt, err)
		return
	}

	w := &workerState{id: uuid.NewString(), handle: handle}

	p.mu.Lock()
	p.spawning--
	if p.closed || p.cancelled {
		delete(p.pending, pt.id)
		p.mu.Unlock()
		_ = handle.Kill()
		pt.done <- Outcome{Err: ErrPoolClosed}
		return
	}
	w.current = pt
	p.workers[w.id] = w
	p.mu.Unlock()

	go p.readLoop(w)
	p.dispatch(w, pt)
}

func (p *Pool) awaitReady(handle WorkerHandle) error {
	msg, err := handle.Reader().Next()
	if err != nil {
		return fmt.Errorf("waiting for worker ready: %w", err)
	}
	if msg.Type != protocol.TypeReady {
		return fmt.Errorf("expected ready message, got %q", msg.Type)
	}
	var ready protocol.ReadyPayload
	if err := protocol.Decode(msg.Line, &ready); err != nil {
		return err
	}
	if err := protocol.CheckVersion(ready.ProtocolVersion); err != nil {
		return fmt.Errorf("incompatible worker: %w", err)
	}
	return nil
}

func (p *Pool) dispatch(w *workerState, pt *pendingTask) {
	err := w.handle.Writer().Write(protocol.TypeRun, protocol.RunPayload{
		TaskID:        pt.id,
		FilePath:      pt.task.FilePath,
		ScenarioIndex: pt.task.ScenarioIndex,
		TimeoutMS:     pt.task.TimeoutMS,
		LogLevel:      pt.task.LogLevel,
	})
	if err != nil {
		p.handleWorkerCrash(w, fmt.Errorf("dispatching task: %w", err))
	}
}

// failTask delivers an immediate error outcome for a task that never
// reached a worker (spawn or handshake failure), counting it toward
// max_failures exactly like an in-flight crash would.
func (p *Pool) failTask(pt *pendingTask, err error) {
	p.mu.Lock()
	p.spawning--
	delete(p.pending, pt.id)
	p.registerFailureLocked()
	p.mu.Unlock()
	pt.done <- Outcome{Err: err}
}

func (p *Pool) readLoop(w *workerState) {
	for {
		msg, err := w.handle.Reader().Next()
		if err != nil {
			p.handleWorkerCrash(w, err)
			return
		}
		if !p.routeMessage(w, msg) {
			return
		}
	}
}

// routeMessage hands one worker message to the task it names. It
// returns true while readLoop should keep reading this worker (a worker
// serves many tasks in turn), and false when a result or error message
// failed to decode, in which case handleWorkerCrash has already retired
// the worker. Unknown message types are ignored.
func (p *Pool) routeMessage(w *workerState, msg protocol.Message) bool {
	switch msg.Type {
	case protocol.TypeScenarioStart:
		var payload protocol.ScenarioEventPayload
		if err := protocol.Decode(msg.Line, &payload); err == nil {
			p.withTaskCallbacks(payload.TaskID, func(cb Callbacks) {
				if cb.OnScenarioStart != nil {
					cb.OnScenarioStart(payload.Scenario)
				}
			})
		}
	case protocol.TypeStepStart:
		var payload protocol.StepEventPayload
		if err := protocol.Decode(msg.Line, &payload); err == nil {
			p.withTaskCallbacks(payload.TaskID, func(cb Callbacks) {
				if cb.OnStepStart != nil {
					cb.OnStepStart(payload.Scenario, payload.Step)
				}
			})
		}
	case protocol.TypeStepEnd:
		var payload protocol.StepEventPayload
		if err := protocol.Decode(msg.Line, &payload); err == nil && payload.Result != nil {
			p.withTaskCallbacks(payload.TaskID, func(cb Callbacks) {
				if cb.OnStepEnd != nil {
					cb.OnStepEnd(payload.Scenario, payload.Step, *payload.Result)
				}
			})
		}
	case protocol.TypeScenarioEnd:
		// Informational only; the terminal outcome arrives via "result"
		// or "error" below.
	case protocol.TypeResult:
		var payload protocol.ResultPayload
		if err := protocol.Decode(msg.Line, &payload); err != nil {
			p.handleWorkerCrash(w, fmt.Errorf("decoding result message: %w", err))
			return false
		}
		p.completeTask(w, payload.TaskID, Outcome{Result: payload.Result})
	case protocol.TypeError:
		var payload protocol.ErrorPayload
		if err := protocol.Decode(msg.Line, &payload); err != nil {
			p.handleWorkerCrash(w, fmt.Errorf("decoding error message: %w", err))
			return false
		}
		p.completeTask(w, payload.TaskID, Outcome{Err: errorFromObject(payload.Error)})
	}
	return true
}

func (p *Pool) withTaskCallbacks(taskID string, fn func(Callbacks)) {
	p.mu.Lock()
	pt, ok := p.pending[taskID]
	p.mu.Unlock()
	if ok {
		fn(pt.cb)
	}
}

// completeTask delivers a terminal Outcome and frees the worker to
// take the next queued task, if any.
func (p *Pool) completeTask(w *workerState, taskID string, out Outcome) {
	p.mu.Lock()
	pt, ok := p.pending[taskID]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.pending, taskID)
	if out.Err != nil || out.Result.Status == definitions.StatusFailed {
		p.registerFailureLocked()
	}

	var next *pendingTask
	if len(p.queue) > 0 && !p.closed && !p.cancelled {
		next = p.queue[0]
		p.queue = p.queue[1:]
		w.current = next
	} else {
		w.current = nil
		p.idle = append(p.idle, w.id)
	}
	p.mu.Unlock()

	pt.done <- out

	if next != nil {
		p.dispatch(w, next)
	}
}

// handleWorkerCrash retires a worker whose connection broke (EOF,
// decode failure, write failure) — its in-flight task, if any,
// resolves with a WorkerCrashError and a replacement worker is spawned
// if queued work remains (spec.md §4.4 "Failure and replacement").
func (p *Pool) handleWorkerCrash(w *workerState, cause error) {
	p.mu.Lock()
	if _, stillTracked := p.workers[w.id]; !stillTracked {
		p.mu.Unlock()
		return
	}
	delete(p.workers, w.id)
	current := w.current
	w.current = nil
	var failedTaskID string
	if current != nil {
		failedTaskID = current.id
		delete(p.pending, failedTaskID)
		p.registerFailureLocked()
	}

	var replacement *pendingTask
	if len(p.queue) > 0 && !p.closed && !p.cancelled {
		replacement = p.queue[0]
		p.queue = p.queue[1:]
		p.spawning++
	}
	p.mu.Unlock()

	p.logger.Warn("worker crashed", "error", cause)
	_ = w.handle.Kill()

	if current != nil {
		current.done <- Outcome{Err: &definitions.WorkerCrashError{TaskID: failedTaskID, Err: cause}}
	}
	if replacement != nil {
		go p.spawnAndDispatch(replacement)
	}
}

// registerFailureLocked must be called with p.mu held. It counts one
// task failure toward max_failures and, once the threshold is hit,
// flips the Pool into cancelled mode: queued tasks are rejected
// immediately and Close is triggered asynchronously to tear down every
// live worker (spec.md §4.6's cancellation signal — a worker serves
// one Scenario at a time, so terminating it is how the Pool aborts
// whatever that worker is running).
func (p *Pool) registerFailureLocked() {
	if p.maxFailures <= 0 {
		return
	}
	p.failures++
	if p.failures < p.maxFailures || p.cancelled {
		return
	}
	p.cancelled = true

	discarded := p.queue
	p.queue = nil

	go func() {
		for _, pt := range discarded {
			pt.done <- Outcome{Err: ErrMaxFailuresReached}
		}
		_ = p.Close(context.Background())
	}()
}

// Close terminates every worker and rejects any task still queued.
// Idempotent: calling it more than once (or after max_failures already
// triggered it) is a no-op.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	workers := make([]*workerState, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	queued := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, pt := range queued {
		pt.done <- Outcome{Err: ErrPoolClosed}
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *workerState) {
			defer wg.Done()
			p.terminateWorker(w)
		}(w)
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (p *Pool) terminateWorker(w *workerState) {
	p.mu.Lock()
	current := w.current
	w.current = nil
	if current != nil {
		delete(p.pending, current.id)
	}
	p.mu.Unlock()
	if current != nil {
		current.done <- Outcome{Err: ErrPoolClosed}
	}

	_ = w.handle.Writer().Write(protocol.TypeTerminate, nil)
	_ = w.handle.CloseStdin()

	exited := make(chan error, 1)
	go func() { exited <- w.handle.Wait() }()

	select {
	case <-exited:
	case <-time.After(p.terminationGrace):
		_ = w.handle.Kill()
		<-exited
	}
}

func errorFromObject(obj *definitions.ErrorObject) error {
	if obj == nil {
		return errors.New("worker reported an error with no detail")
	}
	return fmt.Errorf("%s: %s", obj.Name, obj.Message)
}
