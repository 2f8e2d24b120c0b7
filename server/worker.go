package server

import (
	"errors"
	"sync"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/vm"
)

// ErrWorkerStopped is returned by Do once the worker has been stopped.
var ErrWorkerStopped = errors.New("state worker stopped")

// stateRequest is a unit of work to be executed on the worker goroutine.
type stateRequest struct {
	fn   func(*vm.State) any
	done chan stateResult
}

type stateResult struct {
	value any
	err   error
}

// StateWorker serializes all access to a VM state through a single
// goroutine. A vm.State is not safe for concurrent use and LSP handlers
// run concurrently, so every handler goes through the worker.
type StateWorker struct {
	state    *vm.State
	requests chan stateRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewStateWorker creates a StateWorker and starts the processing goroutine.
func NewStateWorker(L *vm.State) *StateWorker {
	w := &StateWorker{
		state:    L,
		requests: make(chan stateRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *StateWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn under the VM's protected-call barrier so script errors
// and panics come back as errors.
func (w *StateWorker) execute(fn func(*vm.State) any) stateResult {
	L := w.state
	status, v := glue.Protect(L, func() any { return fn(L) })
	if status != vm.StatusOk {
		return stateResult{err: L.LastError()}
	}
	return stateResult{value: v.MustGet()}
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes. It returns ErrWorkerStopped if the worker stops first.
func (w *StateWorker) Do(fn func(*vm.State) any) (any, error) {
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}
	req := stateRequest{
		fn:   fn,
		done: make(chan stateResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *StateWorker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
