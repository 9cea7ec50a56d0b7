package operations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zidane0ma/tagflow/internal/metrics"
)

// ErrCancelled is returned by a Body (or propagated from Handle.CancelIfRequested)
// when cooperative cancellation was honored.
var ErrCancelled = errors.New("operation cancelled")

// ProgressEvent is what the manager publishes to a Broadcaster each time an
// operation's progress changes, and on every terminal transition.
type ProgressEvent struct {
	OperationID string
	Type        Type
	State       State
	Processed   int
	Total       int
	Percent     float64
	Message     string
	Error       string
	Terminal    bool
}

// Broadcaster is the subset of the realtime hub the manager
// depends on. Defined here, not imported from internal/realtime, so the two
// packages don't import each other; internal/realtime.Hub satisfies it.
type Broadcaster interface {
	PublishOperationEvent(ev ProgressEvent)
}

// noopBroadcaster is used when the manager is built without a hub (e.g. in
// unit tests that only care about operation bookkeeping).
type noopBroadcaster struct{}

func (noopBroadcaster) PublishOperationEvent(ProgressEvent) {}

// Manager runs and tracks operations. A single in-process
// priority queue feeds a bounded pool of worker goroutines; queued
// operations never preempt one already running.
type Manager struct {
	mu         sync.Mutex
	ops        map[string]*Operation
	cancelled  map[string]bool
	paused     map[string]bool
	pauseCond  map[string]chan struct{}
	logger     *zap.Logger
	broadcast  Broadcaster
	maxWorkers int
	queue      chan queuedOp
	limiters   map[string]*rate.Limiter

	notificationInterval time.Duration
}

type queuedOp struct {
	id       string
	priority Priority
	run      func(ctx context.Context)
}

// Config tunes the manager's concurrency and broadcast rate limiting.
type Config struct {
	MaxConcurrentOperations int
	NotificationInterval    time.Duration
}

// NewManager builds a Manager. broadcaster may be nil, in which case
// progress events are computed but never published.
func NewManager(cfg Config, broadcaster Broadcaster, logger *zap.Logger) *Manager {
	if cfg.MaxConcurrentOperations <= 0 {
		cfg.MaxConcurrentOperations = 4
	}
	if cfg.NotificationInterval <= 0 {
		cfg.NotificationInterval = 500 * time.Millisecond
	}
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}

	m := &Manager{
		ops:                  make(map[string]*Operation),
		cancelled:            make(map[string]bool),
		paused:               make(map[string]bool),
		pauseCond:            make(map[string]chan struct{}),
		logger:               logger,
		broadcast:            broadcaster,
		maxWorkers:           cfg.MaxConcurrentOperations,
		queue:                make(chan queuedOp, 1024),
		limiters:             make(map[string]*rate.Limiter),
		notificationInterval: cfg.NotificationInterval,
	}
	for i := 0; i < m.maxWorkers; i++ {
		go m.worker()
	}
	return m
}

func (m *Manager) worker() {
	for q := range m.queue {
		q.run(context.Background())
	}
}

// Close stops the worker pool: operations already queued still run, then the
// workers exit. Call it only during process shutdown or test teardown.
func (m *Manager) Close() {
	close(m.queue)
}

// Start enqueues a new operation of the given type/priority and immediately
// returns its id; body runs asynchronously on a scheduler worker.
func (m *Manager) Start(opType Type, priority Priority, totalItems int, body Body) string {
	id := uuid.NewString()
	now := time.Now()

	op := &Operation{
		ID:             id,
		Type:           opType,
		Priority:       priority,
		State:          StateQueued,
		TotalItems:     totalItems,
		LastProgressAt: now,
	}

	m.mu.Lock()
	m.ops[id] = op
	m.limiters[id] = rate.NewLimiter(rate.Every(m.notificationInterval), 1)
	m.pauseCond[id] = make(chan struct{})
	m.mu.Unlock()

	m.enqueue(queuedOp{
		id:       id,
		priority: priority,
		run: func(ctx context.Context) {
			m.run(ctx, id, body)
		},
	})
	return id
}

// enqueue inserts q into the priority queue. Channel-based FIFO with
// priority is approximated by draining and re-sorting: acceptable at the
// scale of a personal media library, simpler than a heap for a handful of
// concurrent jobs.
func (m *Manager) enqueue(q queuedOp) {
	m.mu.Lock()
	pending := m.drainQueueLocked()
	pending = append(pending, q)
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].priority > pending[j].priority })
	for _, p := range pending {
		m.queue <- p
	}
	m.mu.Unlock()
}

func (m *Manager) drainQueueLocked() []queuedOp {
	var pending []queuedOp
	for {
		select {
		case q := <-m.queue:
			pending = append(pending, q)
		default:
			return pending
		}
	}
}

func (m *Manager) run(ctx context.Context, id string, body Body) {
	start := time.Now()
	m.transition(id, StateRunning, func(op *Operation) { op.StartedAt = &start })

	h := &Handle{manager: m, id: id}
	result, err := body(ctx, h)

	finish := time.Now()
	switch {
	case errors.Is(err, ErrCancelled):
		m.transition(id, StateCancelled, func(op *Operation) { op.FinishedAt = &finish })
		metrics.ObserveOperation(string(m.opType(id)), string(StateCancelled), finish.Sub(start))
	case err != nil:
		m.transition(id, StateFailed, func(op *Operation) {
			op.FinishedAt = &finish
			op.Error = err.Error()
		})
		metrics.ObserveOperation(string(m.opType(id)), string(StateFailed), finish.Sub(start))
	default:
		m.transition(id, StateCompleted, func(op *Operation) {
			op.FinishedAt = &finish
			op.Result = result
			op.ProgressPercent = 100
		})
		metrics.ObserveOperation(string(m.opType(id)), string(StateCompleted), finish.Sub(start))
	}
	m.publishTerminal(id)
}

func (m *Manager) opType(id string) Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op, ok := m.ops[id]; ok {
		return op.Type
	}
	return ""
}

func (m *Manager) transition(id string, state State, mutate func(*Operation)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return
	}
	op.State = state
	if mutate != nil {
		mutate(op)
	}
}

func (m *Manager) publishTerminal(id string) {
	m.mu.Lock()
	op, ok := m.ops[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	// Terminal frames are never dropped: they bypass the rate limiter
	// progress frames otherwise go through.
	m.broadcast.PublishOperationEvent(ProgressEvent{
		OperationID: id,
		Type:        op.Type,
		State:       op.State,
		Processed:   op.ProcessedCount,
		Total:       op.TotalItems,
		Percent:     op.ProgressPercent,
		Error:       op.Error,
		Terminal:    true,
	})
}

// Get returns a value-copy snapshot of an operation, or false if unknown.
func (m *Manager) Get(id string) (Operation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return Operation{}, false
	}
	return op.snapshot(), true
}

// All returns a snapshot of every tracked operation.
func (m *Manager) All() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Operation, 0, len(m.ops))
	for _, op := range m.ops {
		out = append(out, op.snapshot())
	}
	return out
}

// Active returns operations currently queued, running or paused.
func (m *Manager) Active() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Operation
	for _, op := range m.ops {
		if op.State == StateQueued || op.State == StateRunning || op.State == StatePaused {
			out = append(out, op.snapshot())
		}
	}
	return out
}

// Cancel requests cooperative cancellation of a running/queued operation.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ops[id]; !ok {
		return fmt.Errorf("unknown operation %q", id)
	}
	m.cancelled[id] = true
	// Wake a paused body so it observes cancellation instead of blocking forever.
	if ch, ok := m.pauseCond[id]; ok && m.paused[id] {
		close(ch)
		m.pauseCond[id] = make(chan struct{})
		delete(m.paused, id)
	}
	return nil
}

// Pause flips the cooperative pause gate an operation body polls.
func (m *Manager) Pause(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return fmt.Errorf("unknown operation %q", id)
	}
	if op.State != StateRunning {
		return fmt.Errorf("operation %q is not running", id)
	}
	m.paused[id] = true
	op.State = StatePaused
	return nil
}

// Resume clears the pause gate, releasing a body blocked in WaitIfPaused.
func (m *Manager) Resume(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return fmt.Errorf("unknown operation %q", id)
	}
	if op.State != StatePaused {
		return fmt.Errorf("operation %q is not paused", id)
	}
	delete(m.paused, id)
	op.State = StateRunning
	if ch, ok := m.pauseCond[id]; ok {
		close(ch)
		m.pauseCond[id] = make(chan struct{})
	}
	return nil
}

// CleanupCompleted removes terminal records older than maxAge.
func (m *Manager) CleanupCompleted(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, op := range m.ops {
		if op.FinishedAt != nil && op.FinishedAt.Before(cutoff) {
			delete(m.ops, id)
			delete(m.cancelled, id)
			delete(m.paused, id)
			delete(m.pauseCond, id)
			delete(m.limiters, id)
			removed++
		}
	}
	return removed
}

// MarkInterruptedAsFailed marks every non-terminal operation as failed with
// reason "process_restart": the manager holds state only in memory, so a
// restart loses in-flight operations.
func (m *Manager) MarkInterruptedAsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, op := range m.ops {
		if op.State == StateQueued || op.State == StateRunning || op.State == StatePaused {
			op.State = StateFailed
			op.Error = "process_restart"
			op.FinishedAt = &now
		}
	}
}
