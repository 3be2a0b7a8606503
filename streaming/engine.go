// Package streaming implements the bounded multi-stream state machine:
// per-stream buffering, backpressure, category-aware circuit breaking and
// exponential-backoff recovery.
package streaming

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/reasoncore/engine/breaker"
	"github.com/reasoncore/engine/events"
)

// Error reports a streaming engine failure.
type Error struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Action, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// backpressureRecoveryThreshold is the utilization fraction below which a
// stream in Backpressure auto-recovers back to Active/Buffering.
const backpressureRecoveryThreshold = 0.70

// RecoveryPolicy controls the exponential-backoff retry loop handle_error
// drives for a retryable failure category.
type RecoveryPolicy struct {
	BaseDelay   time.Duration
	Factor      float64
	CapDelay    time.Duration
	MaxAttempts int
}

// DefaultRecoveryPolicy returns the stream recovery defaults: a 200ms
// base delay doubling each attempt, capped at 10s, at most 5 attempts.
func DefaultRecoveryPolicy() RecoveryPolicy {
	return RecoveryPolicy{
		BaseDelay:   200 * time.Millisecond,
		Factor:      2,
		CapDelay:    10 * time.Second,
		MaxAttempts: 5,
	}
}

func (p RecoveryPolicy) delayFor(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt-1))
	if d > float64(p.CapDelay) {
		d = float64(p.CapDelay)
	}
	return time.Duration(d)
}

// stream bundles a buffer with its current state under one lock.
type stream struct {
	mu     sync.Mutex
	id     string
	kind   Kind
	buffer *Buffer
	state  State
}

// Engine manages a bounded set of concurrent streams.
type Engine struct {
	mu            sync.Mutex
	streams       map[string]*stream
	maxConcurrent int
	maxBufferSize uint64
	policy        OverflowPolicy
	breaker       *breaker.Breaker
	emitter       *events.Emitter
	recovery      RecoveryPolicy
	now           func() time.Time
}

// NewEngine creates a streaming engine gated by b and emitting lifecycle
// events through emitter.
func NewEngine(maxConcurrent int, maxBufferSize uint64, policy OverflowPolicy, b *breaker.Breaker, emitter *events.Emitter) *Engine {
	if policy == nil {
		policy = DropOldest{}
	}
	return &Engine{
		streams:       make(map[string]*stream),
		maxConcurrent: maxConcurrent,
		maxBufferSize: maxBufferSize,
		policy:        policy,
		breaker:       b,
		emitter:       emitter,
		recovery:      DefaultRecoveryPolicy(),
		now:           time.Now,
	}
}

// Start registers a new stream in the Active state. It is rejected if the
// "streaming" category is Open or the engine is already at capacity.
func (e *Engine) Start(id string, kind Kind) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.breaker.AllowsFor(breaker.Category("streaming")) {
		return &Error{Component: "streaming", Action: "Start", Message: "circuit open for category streaming"}
	}
	if len(e.streams) >= e.maxConcurrent {
		return &Error{Component: "streaming", Action: "Start", Message: "max_concurrent_streams reached"}
	}
	if _, exists := e.streams[id]; exists {
		return &Error{Component: "streaming", Action: "Start", Message: "stream id already active"}
	}

	s := &stream{
		id:     id,
		kind:   kind,
		buffer: NewBuffer(id, e.maxBufferSize, e.policy),
		state:  Idle(kind),
	}
	e.streams[id] = s

	e.emitter.Emit(events.Event{
		Kind:      events.StreamChunkReceived,
		SessionID: id,
		Payload:   map[string]interface{}{"lifecycle": "started", "kind": string(kind)},
	})

	s.mu.Lock()
	s.state = State{Tag: StateActive, StartedAt: e.now(), LastActivity: e.now()}
	s.mu.Unlock()
	return nil
}

func (e *Engine) get(id string) (*stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.streams[id]
	if !ok {
		return nil, &Error{Component: "streaming", Action: "lookup", Message: "unknown stream id"}
	}
	return s, nil
}

// Process admits chunk into the stream's buffer and advances its state.
func (e *Engine) Process(id string, c Chunk) (State, error) {
	s, err := e.get(id)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return s.state, &Error{Component: "streaming", Action: "Process", Message: "stream already terminal"}
	}
	if s.state.Tag == StateError && !s.state.Recoverable {
		return s.state, &Error{Component: "streaming", Action: "Process", Message: "stream in unrecoverable error state"}
	}

	e.emitter.Emit(events.Event{
		Kind:      events.StreamChunkReceived,
		SessionID: id,
		Payload:   map[string]interface{}{"chunk_kind": string(c.Kind), "chunk_size": c.Size()},
	})

	addErr := s.buffer.Add(c)
	utilization := s.buffer.Utilization()

	next := s.state
	switch {
	case addErr != nil:
		next = State{
			Tag:         StateBackpressure,
			Since:       e.now(),
			PressureLevel: utilization,
			DroppedChunks: derefDropped(s.buffer),
		}
	case utilization >= 0.9:
		next = State{Tag: StateBuffering, BufferSize: s.buffer.CurrentSize(), Utilization: utilization, Since: e.now()}
	default:
		processed, _ := s.buffer.Counters()
		next = State{
			Tag:             StateActive,
			StartedAt:       activeStart(s.state),
			ChunksProcessed: processed,
			BytesProcessed:  s.state.BytesProcessed + uint64(c.Size()),
			LastActivity:    e.now(),
		}
	}

	if !canTransition(s.state, next.Tag) {
		// Processing a chunk never forces an invalid jump; if the table
		// disagrees, hold the previous state and surface the buffer error.
		next = s.state
	}
	s.state = next

	if addErr == nil {
		e.emitter.Emit(events.Event{
			Kind:      events.ChunkProcessed,
			SessionID: id,
			Payload:   map[string]interface{}{"chunk_id": c.ID},
		})
	}

	return s.state, addErr
}

func activeStart(prev State) time.Time {
	if !prev.StartedAt.IsZero() {
		return prev.StartedAt
	}
	return time.Now()
}

func derefDropped(b *Buffer) uint64 {
	_, dropped := b.Counters()
	return dropped
}

// HandleBackpressure records an explicit pressure sample and auto-recovers
// the stream to Active once utilization falls below the recovery threshold.
func (e *Engine) HandleBackpressure(id string, level float64) (State, error) {
	s, err := e.get(id)
	if err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return s.state, &Error{Component: "streaming", Action: "HandleBackpressure", Message: "stream already terminal"}
	}

	if level < backpressureRecoveryThreshold {
		processed, _ := s.buffer.Counters()
		s.state = State{
			Tag:             StateActive,
			StartedAt:       activeStart(s.state),
			ChunksProcessed: processed,
			BytesProcessed:  s.state.BytesProcessed,
			LastActivity:    e.now(),
		}
		return s.state, nil
	}

	_, dropped := s.buffer.Counters()
	s.state = State{Tag: StateBackpressure, Since: e.now(), PressureLevel: level, DroppedChunks: dropped}
	return s.state, nil
}

// HandleError maps err to a failure category, records it against the
// engine's breaker, and — for a retryable category with the breaker still
// closed/half-open — runs the exponential-backoff recovery loop before
// giving up and moving the stream to a (possibly fatal) Error state.
func (e *Engine) HandleError(ctx context.Context, id string, category breaker.Category, cause error, recoverable bool) State {
	s, lookupErr := e.get(id)
	if lookupErr != nil {
		return State{}
	}

	s.mu.Lock()
	first := e.now()
	if s.state.Tag == StateError {
		first = s.state.FirstError
	}
	errCount := uint32(1)
	if s.state.Tag == StateError {
		errCount = s.state.ErrorCount + 1
	}
	s.state = State{
		Tag:         StateError,
		Message:     cause.Error(),
		ErrorCount:  errCount,
		FirstError:  first,
		LastError:   e.now(),
		Recoverable: recoverable,
	}
	s.mu.Unlock()

	breakerState := e.breaker.RecordFailure(category)

	e.emitter.Emit(events.Event{
		Kind:      events.ErrorOccurred,
		SessionID: id,
		Payload:   map[string]interface{}{"category": string(category), "message": cause.Error()},
	})

	if !recoverable || breakerState == breaker.Open {
		return e.terminateStream(s, "unrecoverable error")
	}

	if e.attemptRecovery(ctx, id, category) {
		s.mu.Lock()
		s.state = State{Tag: StateActive, StartedAt: e.now(), LastActivity: e.now()}
		out := s.state
		s.mu.Unlock()
		e.breaker.RecordSuccess(category)
		return out
	}

	return e.terminateStream(s, "recovery attempts exhausted")
}

// attemptRecovery runs the bounded exponential-backoff wait loop. It does
// not itself retry the failing operation (callers own that); it only
// paces the retries against the configured policy and breaker state.
func (e *Engine) attemptRecovery(ctx context.Context, id string, category breaker.Category) bool {
	for attempt := 1; attempt <= e.recovery.MaxAttempts; attempt++ {
		if !e.breaker.AllowsFor(category) {
			return false
		}
		delay := e.recovery.delayFor(attempt)
		timer := time.NewTimer(delay)
		safety := time.NewTimer(delay + time.Second)
		select {
		case <-timer.C:
			safety.Stop()
			return true
		case <-safety.C:
			timer.Stop()
			continue
		case <-ctx.Done():
			timer.Stop()
			safety.Stop()
			return false
		}
	}
	return false
}

// Complete drives a stream to Completed and drains its buffer.
func (e *Engine) Complete(id string) ([]Chunk, error) {
	s, err := e.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canTransition(s.state, StateCompleted) {
		return nil, &Error{Component: "streaming", Action: "Complete", Message: fmt.Sprintf("cannot complete from %s", s.state.Tag)}
	}

	start := activeStart(s.state)
	s.state = State{Tag: StateCompleted, CompletedAt: e.now(), Duration: e.now().Sub(start)}
	remaining := s.buffer.Drain()

	e.mu.Lock()
	delete(e.streams, id)
	e.mu.Unlock()

	return remaining, nil
}

// Terminate force-ends a stream for the given reason regardless of its
// current state (Idle/Active/Buffering/Backpressure/Error may all
// terminate; Completed/Terminated are no-ops).
func (e *Engine) Terminate(id, reason string) []Chunk {
	s, err := e.get(id)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	remaining := s.buffer.Drain()
	if !s.state.IsTerminal() {
		s.state = State{Tag: StateTerminated, TerminatedAt: e.now(), Reason: reason}
	}
	s.mu.Unlock()

	e.mu.Lock()
	delete(e.streams, id)
	e.mu.Unlock()

	return remaining
}

func (e *Engine) terminateStream(s *stream, reason string) State {
	s.mu.Lock()
	s.state = State{Tag: StateTerminated, TerminatedAt: e.now(), Reason: reason}
	out := s.state
	s.mu.Unlock()

	e.mu.Lock()
	delete(e.streams, s.id)
	e.mu.Unlock()
	return out
}

// StateOf returns the current state of a stream without mutating it.
func (e *Engine) StateOf(id string) (State, error) {
	s, err := e.get(id)
	if err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// ActiveCount returns the number of streams currently tracked.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.streams)
}
