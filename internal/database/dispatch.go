package database

import (
	"runtime/debug"
	"sync"

	"github.com/franz/transcribrr/internal/util"
)

// Dispatcher decides where callbacks run. A UI passes a DispatcherFunc that
// posts onto its own event loop; headless callers use a QueueDispatcher.
type Dispatcher interface {
	Dispatch(fn func())
	Close()
}

// DispatcherFunc adapts a posting function to a Dispatcher
type DispatcherFunc func(fn func())

// Dispatch calls f(fn)
func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// Close is a no-op; the owner of the event loop controls its lifetime
func (f DispatcherFunc) Close() {}

// QueueDispatcher runs callbacks serially, in the order they were
// dispatched, on its own goroutine. The queue is unbounded so the database
// worker never waits on a slow callback. Callbacks dispatched while Close
// drains the queue are still queued; once the queue has drained, callbacks
// run synchronously on the dispatching goroutine.
type QueueDispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool
	exited  bool
	done    chan struct{}
}

// NewQueueDispatcher starts the callback goroutine
func NewQueueDispatcher() *QueueDispatcher {
	d := &QueueDispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// Dispatch queues fn, or runs it immediately once the closed dispatcher has
// drained its queue
func (d *QueueDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	if d.exited {
		d.mu.Unlock()
		util.DebugLog("Dispatcher closed, running callback synchronously")
		safeCall(fn)
		return
	}
	d.pending = append(d.pending, fn)
	d.mu.Unlock()
	d.cond.Signal()
}

// Close runs every queued callback, then switches to synchronous delivery.
// It must not be called from a callback.
func (d *QueueDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
	<-d.done
}

func (d *QueueDispatcher) loop() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.pending) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.pending) == 0 && d.closed {
			d.exited = true
			d.mu.Unlock()
			return
		}
		batch := d.pending
		d.pending = nil
		d.mu.Unlock()

		for _, fn := range batch {
			safeCall(fn)
		}
	}
}

// safeCall keeps one panicking callback from taking down the dispatcher
func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			util.ErrorLog("Callback panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}
