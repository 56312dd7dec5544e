package database

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/franz/transcribrr/internal/metrics"
	"github.com/franz/transcribrr/internal/report"
	"github.com/franz/transcribrr/internal/store"
	"github.com/franz/transcribrr/internal/util"
)

// DefaultQueueSize bounds the number of operations waiting for the worker
const DefaultQueueSize = 256

// Error kinds surfaced to callers
const (
	KindDuplicatePath   = "Duplicate path"
	KindDuplicateFolder = "Duplicate folder"
	KindRuntime         = "Runtime error"
	KindStopped         = "Worker stopped"
)

// ErrWorkerStopped is returned for operations submitted after Stop
var ErrWorkerStopped = errors.New("database worker stopped")

// Op is one unit of work for the worker. ID identifies the calling context.
type Op struct {
	ID    string
	Name  string
	Write bool // run inside a transaction
	Run   func(ctx context.Context, s *store.Store) (any, error)
}

// Result is emitted once for every executed operation
type Result struct {
	OpID  string
	Name  string
	Value any
	Err   error
	Kind  string // empty on success
}

// Worker owns the store and executes operations one at a time on a single
// goroutine. No other goroutine may touch the store while the worker runs.
type Worker struct {
	store  *store.Store
	queue  chan Op
	sink   func(Result)
	events *report.EventLogger

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	stopErr  error
	done     chan struct{}
}

// NewWorker starts a worker that owns s. sink receives every Result on the
// worker goroutine and must not block for long.
func NewWorker(s *store.Store, sink func(Result), queueSize int, events *report.EventLogger) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if sink == nil {
		sink = func(Result) {}
	}

	w := &Worker{
		store:  s,
		queue:  make(chan Op, queueSize),
		sink:   sink,
		events: events,
		done:   make(chan struct{}),
	}

	metrics.DBWorkerRunning.Set(1)
	go w.run()
	return w
}

// Submit enqueues op, blocking while the queue is full.
// It returns ErrWorkerStopped once Stop has been called.
func (w *Worker) Submit(op Op) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWorkerStopped
	}
	w.queue <- op
	metrics.DBQueueDepth.Set(float64(len(w.queue)))
	return nil
}

// Stop refuses new operations, drains the queue and closes the connection.
// It blocks until the worker has exited and is safe to call more than once,
// but never from inside an operation.
func (w *Worker) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()

		<-w.done

		if err := w.store.Close(); err != nil {
			w.stopErr = fmt.Errorf("failed to close database: %w", err)
		}
		metrics.DBWorkerRunning.Set(0)
		metrics.DBQueueDepth.Set(0)
		util.DebugLog("Database worker stopped")
	})

	<-w.done
	return w.stopErr
}

// Done is closed when the worker goroutine has exited
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) run() {
	defer close(w.done)

	for op := range w.queue {
		metrics.DBQueueDepth.Set(float64(len(w.queue)))
		w.sink(w.execute(op))
	}
}

// execute runs op to completion, turning errors and panics into a Result
func (w *Worker) execute(op Op) (res Result) {
	ctx := context.Background()
	start := time.Now()
	res = Result{OpID: op.ID, Name: op.Name}

	defer func() {
		if r := recover(); r != nil {
			util.ErrorLog("Database operation %s panicked: %v\n%s", op.Name, r, debug.Stack())
			res.Value = nil
			res.Err = fmt.Errorf("%s: panic: %v", op.Name, r)
		}
		if res.Err != nil {
			res.Kind = Classify(res.Err)
		}

		elapsed := time.Since(start)
		metrics.ObserveOperation(op.Name, res.Kind, elapsed.Seconds())
		w.events.LogOperation(op.ID, op.Name, op.Write, elapsed, res.Kind, res.Err)
	}()

	if op.Run == nil {
		return res
	}

	if !op.Write {
		res.Value, res.Err = op.Run(ctx, w.store)
		return res
	}

	res.Err = w.store.Transaction(ctx, func(tx *store.Store) error {
		v, err := op.Run(ctx, tx)
		if err != nil {
			return err
		}
		res.Value = v
		return nil
	})
	if res.Err != nil {
		res.Value = nil
	}
	return res
}

// Classify maps an operation error to its error kind
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrDuplicatePath):
		return KindDuplicatePath
	case errors.Is(err, store.ErrDuplicateFolder):
		return KindDuplicateFolder
	case errors.Is(err, ErrWorkerStopped):
		return KindStopped
	default:
		return KindRuntime
	}
}
