// Package breaker implements a per-failure-category circuit breaker with
// adaptive thresholds, as used by the streaming engine and tool
// orchestrator to gate work away from persistently failing categories.
package breaker

import (
	"sync"
	"time"
)

// Category is a coarse failure taxonomy the breaker uses to gate requests
// independently of one another.
type Category string

const (
	Network        Category = "network"
	Timeout        Category = "timeout"
	Resource       Category = "resource"
	Configuration  Category = "configuration"
	Authentication Category = "authentication"
	Dependency     Category = "dependency"
	Unknown        Category = "unknown"
)

// State is the coarse circuit state, independent of category. A breaker
// instance tracks this state per category internally, but exposes it here
// for inspection of a specific category's status.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// adaptiveCap bounds how far Network/Timeout thresholds may grow.
const adaptiveCap = 10

type categoryState struct {
	state        State
	failureCount uint32
	threshold    uint32
	recovery     time.Duration
	openedAt     time.Time
	halfOpenAt   time.Time
}

// Config holds per-category thresholds and recovery timeouts.
type Config struct {
	Thresholds       map[Category]uint32
	RecoveryTimeouts map[Category]time.Duration
	AdaptiveEnabled  bool
}

// DefaultConfig returns the documented default thresholds and recovery
// timeouts for each category.
func DefaultConfig() Config {
	return Config{
		AdaptiveEnabled: true,
		Thresholds: map[Category]uint32{
			Network:        3,
			Timeout:        2,
			Resource:       1,
			Configuration:  1,
			Authentication: 1,
			Dependency:     2,
			Unknown:        1,
		},
		RecoveryTimeouts: map[Category]time.Duration{
			Network:        30 * time.Second,
			Timeout:        60 * time.Second,
			Resource:       120 * time.Second,
			Configuration:  300 * time.Second,
			Authentication: 300 * time.Second,
			Dependency:     90 * time.Second,
			Unknown:        60 * time.Second,
		},
	}
}

// Breaker tracks independent circuit state per failure category.
type Breaker struct {
	mu            sync.Mutex
	cfg           Config
	categories    map[Category]*categoryState
	totalSuccess  uint64
	now           func() time.Time
}

// New creates a breaker using DefaultConfig.
func New() *Breaker {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a breaker with the given configuration.
func NewWithConfig(cfg Config) *Breaker {
	return &Breaker{
		cfg:        cfg,
		categories: make(map[Category]*categoryState),
		now:        time.Now,
	}
}

func (b *Breaker) stateFor(c Category) *categoryState {
	if cs, ok := b.categories[c]; ok {
		return cs
	}
	threshold := b.cfg.Thresholds[c]
	if threshold == 0 {
		threshold = 1
	}
	recovery := b.cfg.RecoveryTimeouts[c]
	if recovery == 0 {
		recovery = 60 * time.Second
	}
	cs := &categoryState{state: Closed, threshold: threshold, recovery: recovery}
	b.categories[c] = cs
	return cs
}

// AllowsFor reports whether a request tagged with category c is currently
// permitted. If a category's Open window has elapsed, this transitions that
// category to HalfOpen and returns true for its own trial request.
func (b *Breaker) AllowsFor(c Category) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowsForLocked(c)
}

func (b *Breaker) allowsForLocked(c Category) bool {
	cs := b.stateFor(c)
	switch cs.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(cs.openedAt) >= cs.recovery {
			cs.state = HalfOpen
			cs.halfOpenAt = b.now()
			return true
		}
		return false
	case HalfOpen:
		// One trial request for this category is permitted; subsequent
		// calls before the trial resolves still report true so the single
		// in-flight trial can proceed, callers are expected to gate
		// concurrency of the trial themselves.
		return true
	}
	return false
}

// Allows reports whether work of category c is permitted given the current
// state of every category: Open{other} never blocks a different category.
func (b *Breaker) Allows(c Category) bool {
	return b.AllowsFor(c)
}

// RecordFailure increments the failure count for category c. Once the
// count reaches the category's threshold, the category transitions to
// Open. A failure recorded while HalfOpen transitions immediately back to
// Open.
func (b *Breaker) RecordFailure(c Category) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	cs := b.stateFor(c)

	switch cs.state {
	case HalfOpen:
		cs.state = Open
		cs.openedAt = b.now()
		cs.failureCount = cs.threshold
		return Open
	default:
		cs.failureCount++
		if cs.failureCount >= cs.threshold {
			cs.state = Open
			cs.openedAt = b.now()
			b.adapt(c, cs)
		}
		return cs.state
	}
}

// adapt grows Network/Timeout thresholds by 1 (capped at adaptiveCap) on
// every transition to Open, making those categories progressively more
// tolerant of transient noise. Resource/Configuration/Authentication stay
// pinned at their configured floor.
func (b *Breaker) adapt(c Category, cs *categoryState) {
	if !b.cfg.AdaptiveEnabled {
		return
	}
	switch c {
	case Network, Timeout:
		if cs.threshold < adaptiveCap {
			cs.threshold++
		}
	}
}

// RecordSuccess clears failure counts for category c and transitions it to
// Closed (this is how a HalfOpen trial resolves successfully).
func (b *Breaker) RecordSuccess(c Category) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cs := b.stateFor(c)
	cs.state = Closed
	cs.failureCount = 0
	b.totalSuccess++
}

// StateOf returns the current state of category c without mutating it.
func (b *Breaker) StateOf(c Category) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateFor(c).state
}

// TotalSuccesses returns the running count of RecordSuccess calls across
// all categories.
func (b *Breaker) TotalSuccesses() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSuccess
}
