// Command probitas-worker is the child process the Pool spawns one per
// concurrent Scenario (spec.md §4.5): it speaks line-delimited JSON over
// stdin/stdout and executes exactly one Scenario per "run" message.
//
// A worker binary is built by importing the generated or hand-written
// scenario packages a project wants it to serve alongside this package;
// each of those packages registers its Scenarios into
// runnerworker.DefaultRegistry from an init() function.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/probitas/probitas/pkg/protocol"
	"github.com/probitas/probitas/pkg/runnerworker"
)

func main() {
	levelVar := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))

	reader := protocol.NewReader(os.Stdin)
	writer := protocol.NewWriter(os.Stdout)

	w := runnerworker.New(runnerworker.DefaultRegistry, reader, writer,
		runnerworker.WithLogger(logger),
		runnerworker.WithLevelVar(levelVar),
	)

	if err := w.Run(context.Background()); err != nil {
		logger.Error("worker exited with an error", "error", err)
		os.Exit(1)
	}
}
