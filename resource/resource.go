// Package resource implements named resource pools with bounded capacity
// and priority-aware allocation for the tool orchestrator.
package resource

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// ERRORS
// ============================================================================

// Error represents a resource-manager failure.
type Error struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(action, message string, err error) *Error {
	return &Error{Component: "resource", Action: action, Message: message, Err: err}
}

// ErrUnavailable is wrapped into Error.Err when an allocation could not be
// satisfied within its wait timeout.
var ErrUnavailable = fmt.Errorf("resource unavailable")

// ErrUnknownPool is wrapped into Error.Err when a requested resource type was
// never registered.
var ErrUnknownPool = fmt.Errorf("unknown resource pool")

// DefaultWaitTimeout is the manager-level fallback allocation-wait timeout.
const DefaultWaitTimeout = 5 * time.Second

// historyCap bounds the allocation-record ring so the manager's memory is
// bounded regardless of orchestration volume.
const historyCap = 10000

// ============================================================================
// REQUIREMENTS AND HANDLES
// ============================================================================

// Requirement describes one resource demand of a tool execution request.
type Requirement struct {
	Type              string
	Amount            uint32
	Exclusive         bool
	AllocationTimeout *time.Duration
}

// Allocated is a handle to units held from one or more pools. Release is
// idempotent: calling Release twice on the same handle is a no-op the
// second time.
type Allocated struct {
	ID          string
	Owner       string
	AcquiredAt  time.Time
	grants      []grant
	released    bool
	mu          sync.Mutex
}

type grant struct {
	pool   *Pool
	amount uint32
}

// Record is one entry in the bounded allocation history ring.
type Record struct {
	ID         string
	Owner      string
	Type       string
	Amount     uint32
	AcquiredAt time.Time
	ReleasedAt time.Time
	WaitTime   time.Duration
}

// ============================================================================
// POOL
// ============================================================================

// Pool is a single named resource pool with bounded capacity.
type Pool struct {
	name      string
	capacity  uint32
	mu        sync.Mutex
	available uint32
	waiters   waiterHeap
	seq       int64
}

// NewPool creates a pool with the given capacity.
func NewPool(name string, capacity uint32) *Pool {
	return &Pool{
		name:      name,
		capacity:  capacity,
		available: capacity,
	}
}

func (p *Pool) Capacity() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

func (p *Pool) Available() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// waiter is a priority-ordered pending allocation request.
type waiter struct {
	priority float64
	seq      int64 // FIFO tiebreak among equal priorities
	amount   uint32
	ready    chan struct{}
	index    int
}

type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }
func (h waiterHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority // higher priority first
	}
	return h[i].seq < h[j].seq // FIFO among equal priority
}
func (h waiterHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *waiterHeap) Push(x interface{}) {
	w := x.(*waiter)
	w.index = len(*h)
	*h = append(*h, w)
}
func (h *waiterHeap) Pop() interface{} {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return w
}

// acquire succeeds immediately if the pool has amount available and no
// waiter is queued; otherwise it queues by priority and waits up to wait.
func (p *Pool) acquire(ctx context.Context, amount uint32, priority float64, wait time.Duration) error {
	p.mu.Lock()
	if p.available >= amount && p.waiters.Len() == 0 {
		p.available -= amount
		p.mu.Unlock()
		return nil
	}
	w := &waiter{priority: priority, seq: p.seq, amount: amount, ready: make(chan struct{})}
	p.seq++
	heap.Push(&p.waiters, w)
	p.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-w.ready:
		return nil
	case <-timer.C:
		p.mu.Lock()
		if w.index >= 0 && w.index < len(p.waiters) && p.waiters[w.index] == w {
			heap.Remove(&p.waiters, w.index)
		}
		p.mu.Unlock()
		return ErrUnavailable
	case <-ctx.Done():
		p.mu.Lock()
		if w.index >= 0 && w.index < len(p.waiters) && p.waiters[w.index] == w {
			heap.Remove(&p.waiters, w.index)
		}
		p.mu.Unlock()
		return ctx.Err()
	}
}

func (p *Pool) release(amount uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available += amount
	if p.available > p.capacity {
		p.available = p.capacity
	}
	p.wakeWaitersLocked()
}

// wakeWaitersLocked serves the highest-priority waiter whose request now
// fits, repeatedly, until the front of the queue no longer fits.
func (p *Pool) wakeWaitersLocked() {
	for p.waiters.Len() > 0 {
		top := p.waiters[0]
		if top.amount > p.available {
			return
		}
		heap.Pop(&p.waiters)
		p.available -= top.amount
		close(top.ready)
	}
}

// ============================================================================
// MANAGER
// ============================================================================

// Manager owns the set of registered resource pools and the bounded
// allocation history ring.
type Manager struct {
	mu      sync.RWMutex
	pools   map[string]*Pool
	history []Record
	histPos int
	logger  *slog.Logger
}

// NewManager creates a resource manager with no pools registered.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pools:   make(map[string]*Pool),
		history: make([]Record, 0, historyCap),
		logger:  logger,
	}
}

// RegisterPool adds a named pool with the given capacity. Registration is
// expected at setup time, before any allocate/release traffic.
func (m *Manager) RegisterPool(resourceType string, capacity uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[resourceType] = NewPool(resourceType, capacity)
}

// Allocate acquires the given requirements, one pool at a time, in a
// globally fixed order (lexicographic by resource-type name) so that
// concurrent multi-resource requests can never deadlock against each
// other. On a wait-timeout for any requirement, all prior grants for this
// call are released before returning the error.
func (m *Manager) Allocate(ctx context.Context, reqs []Requirement, priority float64, owner string) (*Allocated, error) {
	if len(reqs) == 0 {
		return &Allocated{ID: uuid.NewString(), Owner: owner, AcquiredAt: time.Now()}, nil
	}

	ordered := make([]Requirement, len(reqs))
	copy(ordered, reqs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Type < ordered[j].Type })

	alloc := &Allocated{ID: uuid.NewString(), Owner: owner, AcquiredAt: time.Now()}

	for _, req := range ordered {
		pool, err := m.pool(req.Type)
		if err != nil {
			m.rollback(alloc)
			return nil, newError("Allocate", fmt.Sprintf("resource type %q not registered", req.Type), ErrUnknownPool)
		}

		wait := DefaultWaitTimeout
		if req.AllocationTimeout != nil {
			wait = *req.AllocationTimeout
		}

		start := time.Now()
		if err := pool.acquire(ctx, req.Amount, priority, wait); err != nil {
			m.rollback(alloc)
			m.logger.Warn("resource allocation failed", "type", req.Type, "owner", owner, "amount", req.Amount, "wait", wait)
			return nil, newError("Allocate", fmt.Sprintf("could not allocate %d units of %q within %s", req.Amount, req.Type, wait), ErrUnavailable)
		}
		waitTime := time.Since(start)

		alloc.grants = append(alloc.grants, grant{pool: pool, amount: req.Amount})
		m.record(Record{
			ID:         alloc.ID,
			Owner:      owner,
			Type:       req.Type,
			Amount:     req.Amount,
			AcquiredAt: time.Now(),
			WaitTime:   waitTime,
		})
	}

	return alloc, nil
}

func (m *Manager) rollback(alloc *Allocated) {
	for _, g := range alloc.grants {
		g.pool.release(g.amount)
	}
	alloc.grants = nil
}

// Release returns all units held by alloc to their pools. Release is
// infallible and idempotent.
func (m *Manager) Release(alloc *Allocated) {
	if alloc == nil {
		return
	}
	alloc.mu.Lock()
	defer alloc.mu.Unlock()
	if alloc.released {
		return
	}
	alloc.released = true
	for _, g := range alloc.grants {
		g.pool.release(g.amount)
	}
}

// PoolCapacity reports the capacity of a registered pool, for use by the
// execution planner's resource-conflict check.
func (m *Manager) PoolCapacity(resourceType string) (uint32, bool) {
	m.mu.RLock()
	p, ok := m.pools[resourceType]
	m.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return p.Capacity(), true
}

func (m *Manager) pool(resourceType string) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[resourceType]
	if !ok {
		return nil, ErrUnknownPool
	}
	return p, nil
}

func (m *Manager) record(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) < historyCap {
		m.history = append(m.history, r)
	} else {
		m.history[m.histPos] = r
		m.histPos = (m.histPos + 1) % historyCap
	}
}

// History returns a snapshot copy of the allocation-history ring.
func (m *Manager) History() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.history))
	copy(out, m.history)
	return out
}
