package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/franz/transcribrr/internal/metrics"
	"github.com/franz/transcribrr/internal/report"
	"github.com/franz/transcribrr/internal/store"
	"github.com/franz/transcribrr/internal/util"
)

// Entities named in change notifications
const (
	EntityRecording = "recording"
	EntityFolder    = "folder"
	EntityQuery     = "query"
)

// FullRefresh as a Change ID means consumers should reload everything
const FullRefresh int64 = -1

// Change tells subscribers that stored data was modified
type Change struct {
	Entity string
	ID     int64
}

// IsFullRefresh reports whether the change carries no usable id
func (c Change) IsFullRefresh() bool {
	return c.ID == FullRefresh
}

// OpError is the error handed to callbacks and error subscribers
type OpError struct {
	OpID string
	Op   string
	Kind string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Options configures Open and NewManager
type Options struct {
	QueueSize     int
	BusyTimeoutMs int
	Dispatcher    Dispatcher          // QueueDispatcher when nil
	Events        *report.EventLogger // audit log, may be nil
}

// Manager is the callback API over the database worker. Every call enqueues
// an operation and returns immediately; its callback runs later on the
// dispatcher, exactly once, with either a value or an *OpError.
type Manager struct {
	worker     *Worker
	dispatcher Dispatcher
	events     *report.EventLogger
	path       string

	mu         sync.Mutex
	pending    map[string]func(Result)
	changeSubs map[int]func(Change)
	errorSubs  map[int]func(*OpError)
	nextSub    int

	shutdownOnce sync.Once
	shutdownErr  error
}

// Open opens the database at path and starts its worker. Failure to open or
// migrate the database is the only error reported synchronously.
func Open(path string, opts *Options) (*Manager, error) {
	if opts == nil {
		opts = &Options{}
	}

	storeOpts := &store.OpenOptions{BusyTimeoutMs: opts.BusyTimeoutMs}
	retryCfg := util.DefaultRetryConfig()
	if info, err := util.DetectNetworkFilesystem(path); err == nil && info.IsNetwork {
		util.WarnLog("Database is on a network filesystem: %s", info)
		storeOpts.NetworkOptimized = true
		retryCfg = util.NetworkRetryConfig()
	}

	s, err := util.RetryWithBackoff(context.Background(), retryCfg, "open database", func() (*store.Store, error) {
		return store.OpenWithOptions(path, storeOpts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database %s: %w", path, err)
	}

	util.DebugLog("Opened database %s", path)
	return NewManager(s, opts), nil
}

// NewManager hands s to a new worker. The manager owns s from now on.
func NewManager(s *store.Store, opts *Options) *Manager {
	if opts == nil {
		opts = &Options{}
	}

	m := &Manager{
		dispatcher: opts.Dispatcher,
		events:     opts.Events,
		path:       s.Path(),
		pending:    make(map[string]func(Result)),
		changeSubs: make(map[int]func(Change)),
		errorSubs:  make(map[int]func(*OpError)),
	}
	if m.dispatcher == nil {
		m.dispatcher = NewQueueDispatcher()
	}
	m.worker = NewWorker(s, m.deliver, opts.QueueSize, opts.Events)
	return m
}

// Path returns the database file path
func (m *Manager) Path() string {
	return m.path
}

// OnDataChanged subscribes fn to change notifications and returns an unsubscribe func.
// fn runs on the dispatcher after the callback of the operation that caused it.
func (m *Manager) OnDataChanged(fn func(Change)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.changeSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.changeSubs, id)
	}
}

// OnError subscribes fn to every operation failure and returns an unsubscribe func
func (m *Manager) OnError(fn func(*OpError)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.errorSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.errorSubs, id)
	}
}

// Flush calls done once every previously submitted operation has been executed
func (m *Manager) Flush(done func()) {
	submit(m, "flush", false, func(ctx context.Context, s *store.Store) (struct{}, error) {
		return struct{}{}, nil
	}, func(struct{}, error) {
		if done != nil {
			done()
		}
	}, nil)
}

// Post runs fn on the callback dispatcher after the callbacks already queued.
// Layers above the manager use it to report rejections without touching the worker.
func (m *Manager) Post(fn func()) {
	m.dispatcher.Dispatch(fn)
}

// Shutdown stops the worker after draining its queue, then drains the
// dispatcher. Later calls return the first result.
func (m *Manager) Shutdown() error {
	m.shutdownOnce.Do(func() {
		m.shutdownErr = m.worker.Stop()
		m.dispatcher.Close()
	})
	return m.shutdownErr
}

// deliver runs on the worker goroutine and hands the result to the dispatcher
func (m *Manager) deliver(res Result) {
	m.mu.Lock()
	handler, ok := m.pending[res.OpID]
	delete(m.pending, res.OpID)
	m.mu.Unlock()

	if !ok {
		util.WarnLog("No pending callback for operation %s (%s)", res.OpID, res.Name)
		return
	}
	m.dispatcher.Dispatch(func() { handler(res) })
}

// submit registers done under a fresh op ID and enqueues run. change, when
// set, derives the notification emitted after a successful operation.
func submit[T any](
	m *Manager,
	name string,
	write bool,
	run func(ctx context.Context, s *store.Store) (T, error),
	done func(T, error),
	change func(T) *Change,
) {
	id := uuid.NewString()

	handler := func(res Result) {
		var zero T
		if res.Err != nil {
			opErr := &OpError{OpID: res.OpID, Op: name, Kind: res.Kind, Err: res.Err}
			m.reportError(opErr)
			if done != nil {
				done(zero, opErr)
			}
			return
		}

		v, _ := res.Value.(T)
		if done != nil {
			done(v, nil)
		}
		if change != nil {
			if c := change(v); c != nil {
				m.emitChange(*c)
			}
		}
	}

	m.mu.Lock()
	m.pending[id] = handler
	m.mu.Unlock()

	err := m.worker.Submit(Op{
		ID:    id,
		Name:  name,
		Write: write,
		Run: func(ctx context.Context, s *store.Store) (any, error) {
			return run(ctx, s)
		},
	})
	if err != nil {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()

		res := Result{OpID: id, Name: name, Err: err, Kind: Classify(err)}
		m.dispatcher.Dispatch(func() { handler(res) })
	}
}

// requireCallback logs and reports false for reads whose result would be discarded
func requireCallback[T any](name string, done func(T, error)) bool {
	if done == nil {
		util.WarnLog("%s called without a callback; result would be discarded", name)
		return false
	}
	return true
}

func (m *Manager) reportError(opErr *OpError) {
	if opErr.Kind == KindRuntime {
		util.ErrorLog("Database operation %s failed: %v", opErr.Op, opErr.Err)
	} else {
		util.DebugLog("Database operation %s rejected: %s", opErr.Op, opErr.Kind)
	}

	for _, fn := range m.errorSubscribers() {
		fn(opErr)
	}
}

func (m *Manager) emitChange(c Change) {
	metrics.DataChangedTotal.WithLabelValues(c.Entity).Inc()
	m.events.LogChange(c.Entity, c.ID)

	m.mu.Lock()
	ids := make([]int, 0, len(m.changeSubs))
	for id := range m.changeSubs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, m.changeSubs[id])
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
}

func (m *Manager) errorSubscribers() []func(*OpError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int, 0, len(m.errorSubs))
	for id := range m.errorSubs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(*OpError), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, m.errorSubs[id])
	}
	return subs
}

func changed(entity string, id int64) *Change {
	return &Change{Entity: entity, ID: id}
}
