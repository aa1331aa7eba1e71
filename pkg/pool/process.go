package pool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/probitas/probitas/pkg/protocol"
)

// ProcessSpawner starts a worker as a real child process communicating
// over stdin/stdout, matching spec.md §4.4's "bidirectional pipe of
// line-delimited JSON messages". Stderr is drained to Logger line by
// line rather than inherited, so a noisy worker cannot corrupt the
// parent's own output.
type ProcessSpawner struct {
	Command string
	Args    []string
	Env     []string
	Logger  *slog.Logger
}

// Spawn implements Spawner.
func (s ProcessSpawner) Spawn(ctx context.Context) (WorkerHandle, error) {
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker process: %w", err)
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &processWorker{
		cmd:    cmd,
		stdin:  stdin,
		reader: protocol.NewReader(stdout),
		writer: protocol.NewWriter(stdin),
	}
	go drainStderr(stderr, logger)
	return w, nil
}

func drainStderr(r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Warn("worker stderr", "output", scanner.Text())
	}
}

type processWorker struct {
	cmd    *exec.Cmd
	stdin  io.Closer
	reader *protocol.Reader
	writer *protocol.Writer
}

func (w *processWorker) Reader() *protocol.Reader { return w.reader }
func (w *processWorker) Writer() *protocol.Writer { return w.writer }
func (w *processWorker) CloseStdin() error        { return w.stdin.Close() }
func (w *processWorker) Wait() error              { return w.cmd.Wait() }

func (w *processWorker) Kill() error {
	if w.cmd.Process == nil {
		return nil
	}
	return w.cmd.Process.Kill()
}

var _ Spawner = ProcessSpawner{}.Spawn
