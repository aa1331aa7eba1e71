package pool_test

import (
	"context"
	"io"
	"sync"

	"github.com/probitas/probitas/pkg/pool"
	"github.com/probitas/probitas/pkg/protocol"
)

// fakeWorker is an in-memory WorkerHandle wired with two io.Pipes, so
// tests drive a worker's protocol behavior directly instead of
// spawning a real subprocess — the same style as the teacher's
// io.Pipe-based stdio fakes.
type fakeWorker struct {
	toWorker   *io.PipeWriter // Pool writes here
	fromPool   *io.PipeReader // fake's script reads here
	toPool     *io.PipeWriter // fake's script writes here
	fromWorker *io.PipeReader // Pool reads here

	reader *protocol.Reader
	writer *protocol.Writer

	mu      sync.Mutex
	killed  bool
	waitCh  chan struct{}
	waitErr error
}

func newFakeWorker() *fakeWorker {
	poolToWorkerR, poolToWorkerW := io.Pipe()
	workerToPoolR, workerToPoolW := io.Pipe()
	return &fakeWorker{
		toWorker:   poolToWorkerW,
		fromPool:   poolToWorkerR,
		toPool:     workerToPoolW,
		fromWorker: workerToPoolR,
		reader:     protocol.NewReader(workerToPoolR),
		writer:     protocol.NewWriter(poolToWorkerW),
		waitCh:     make(chan struct{}),
	}
}

func (w *fakeWorker) Reader() *protocol.Reader { return w.reader }
func (w *fakeWorker) Writer() *protocol.Writer { return w.writer }

func (w *fakeWorker) CloseStdin() error {
	return w.toWorker.Close()
}

func (w *fakeWorker) Wait() error {
	<-w.waitCh
	return w.waitErr
}

func (w *fakeWorker) Kill() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.killed {
		return nil
	}
	w.killed = true
	_ = w.toPool.Close()
	_ = w.fromPool.Close()
	close(w.waitCh)
	return nil
}

// exit simulates the child process exiting cleanly after observing a
// terminate message (or on its own, to simulate a crash).
func (w *fakeWorker) exit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.killed {
		return
	}
	w.killed = true
	_ = w.toPool.Close()
	close(w.waitCh)
}

// serverReader lets the fake's driving goroutine read messages the
// Pool sent to the worker (run/terminate).
func (w *fakeWorker) serverReader() *protocol.Reader {
	return protocol.NewReader(w.fromPool)
}

// sendReady writes the handshake message the Pool awaits before using
// a newly spawned worker.
func (w *fakeWorker) sendReady() error {
	return w.writeFromWorker(protocol.TypeReady, protocol.ReadyPayload{ProtocolVersion: protocol.Version})
}

func (w *fakeWorker) writeFromWorker(typ protocol.MessageType, payload any) error {
	line, err := protocol.Encode(typ, payload)
	if err != nil {
		return err
	}
	_, err = w.toPool.Write(line)
	return err
}

// spawnerFor returns a pool.Spawner that always hands out the given
// sequence of fakes, one per call, in order. Calling it more times
// than there are fakes panics — a test bug, not a runtime condition.
func spawnerFor(workers ...*fakeWorker) pool.Spawner {
	i := 0
	return func(context.Context) (pool.WorkerHandle, error) {
		w := workers[i]
		i++
		return w, nil
	}
}
