// Package runnerworker implements the Runner Worker child process
// (spec.md §4.5): it announces readiness, then for each inbound "run"
// message loads the target Scenario, executes it through an Engine whose
// lifecycle events are forwarded to the parent as protocol messages, and
// reports the terminal result or a load/engine-level error.
package runnerworker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/probitas/probitas/pkg/definitions"
	"github.com/probitas/probitas/pkg/engine"
	"github.com/probitas/probitas/pkg/protocol"
)

// Worker serves one child process's side of the protocol over a single
// Reader/Writer pair (ordinarily the process's stdin/stdout).
type Worker struct {
	loader   Loader
	engine   *engine.Engine
	reader   *protocol.Reader
	writer   *protocol.Writer
	logger   *slog.Logger
	levelVar *slog.LevelVar
}

// Option configures a Worker.
type Option func(*Worker)

// WithEngine overrides the Engine used to run scenarios. Defaults to
// engine.New().
func WithEngine(e *engine.Engine) Option {
	return func(w *Worker) { w.engine = e }
}

// WithLogger attaches a logger for worker-internal diagnostics (never
// scenario/step lifecycle, which travels over the protocol instead).
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithLevelVar lets a "run" message's logLevel field adjust the given
// slog.LevelVar in place, so a shared file/buffer handler's verbosity can
// be raised per task without rebuilding the logger.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(w *Worker) { w.levelVar = v }
}

// New builds a Worker reading parent messages from r and writing its own
// messages to w.
func New(loader Loader, r *protocol.Reader, w *protocol.Writer, opts ...Option) *Worker {
	wk := &Worker{
		loader: loader,
		engine: engine.New(),
		reader: r,
		writer: w,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(wk)
	}
	return wk
}

// Run announces readiness, then serves inbound messages until a
// "terminate" message arrives or the parent closes its end of the pipe
// (io.EOF). ctx carries process-wide cancellation; it is the parent of
// every per-task timeout derived from a "run" message's timeout field.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.writer.Write(protocol.TypeReady, protocol.ReadyPayload{ProtocolVersion: protocol.Version}); err != nil {
		return fmt.Errorf("announcing ready: %w", err)
	}

	for {
		msg, err := w.reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading parent message: %w", err)
		}

		switch msg.Type {
		case protocol.TypeRun:
			var payload protocol.RunPayload
			if err := protocol.Decode(msg.Line, &payload); err != nil {
				w.logger.Error("decoding run message", "error", err)
				continue
			}
			w.handleRun(ctx, payload)
		case protocol.TypeTerminate:
			return nil
		default:
			// Forward-compatibility (spec.md §4.4): unknown types are
			// ignored rather than treated as a protocol violation.
			w.logger.Warn("ignoring unknown message type", "type", msg.Type)
		}
	}
}

func (w *Worker) handleRun(ctx context.Context, payload protocol.RunPayload) {
	if w.levelVar != nil && payload.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(payload.LogLevel)); err == nil {
			w.levelVar.Set(level)
		}
	}

	scenarios, err := w.loader.Load(payload.FilePath)
	if err != nil {
		w.reportError(payload.TaskID, &definitions.LoadError{FilePath: payload.FilePath, Err: err})
		return
	}
	if payload.ScenarioIndex < 0 || payload.ScenarioIndex >= len(scenarios) {
		w.reportError(payload.TaskID, &definitions.LoadError{
			FilePath: payload.FilePath,
			Err:      fmt.Errorf("scenario index %d out of range (file defines %d)", payload.ScenarioIndex, len(scenarios)),
		})
		return
	}
	scenario := scenarios[payload.ScenarioIndex]

	runCtx := ctx
	if payload.TimeoutMS > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(payload.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	rep := &forwardingReporter{taskID: payload.TaskID, writer: w.writer}
	result := w.engine.Run(runCtx, scenario, rep)

	if err := w.writer.Write(protocol.TypeResult, protocol.ResultPayload{TaskID: payload.TaskID, Result: result}); err != nil {
		w.logger.Error("writing result message", "taskId", payload.TaskID, "error", err)
	}
}

func (w *Worker) reportError(taskID string, err error) {
	if werr := w.writer.Write(protocol.TypeError, protocol.ErrorPayload{
		TaskID: taskID,
		Error:  definitions.NewErrorObject(err),
	}); werr != nil {
		w.logger.Error("writing error message", "taskId", taskID, "error", werr)
	}
}
