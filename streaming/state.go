package streaming

import "time"

// Kind distinguishes stream variants for logging/metrics (Idle's kind field).
type Kind string

// StateTag is the discriminant of the State tagged union.
type StateTag int

const (
	StateIdle StateTag = iota
	StateActive
	StateBuffering
	StateBackpressure
	StateError
	StateCompleted
	StateTerminated
)

func (t StateTag) String() string {
	switch t {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateBuffering:
		return "buffering"
	case StateBackpressure:
		return "backpressure"
	case StateError:
		return "error"
	case StateCompleted:
		return "completed"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// State is the tagged union of stream states from spec §3.
type State struct {
	Tag StateTag

	// Idle
	CreatedAt time.Time
	StreamKind Kind

	// Active
	StartedAt      time.Time
	ChunksProcessed uint64
	BytesProcessed  uint64
	LastActivity    time.Time

	// Buffering
	BufferSize  uint64
	Utilization float64
	Since       time.Time

	// Backpressure
	PressureLevel float64
	DroppedChunks uint64

	// Error
	Message      string
	ErrorCount   uint32
	FirstError   time.Time
	LastError    time.Time
	Recoverable  bool

	// Completed
	CompletedAt time.Time
	Duration    time.Duration

	// Terminated
	TerminatedAt time.Time
	Reason       string
}

func Idle(kind Kind) State {
	return State{Tag: StateIdle, CreatedAt: time.Now(), StreamKind: kind}
}

// IsTerminal reports whether the state accepts no further transitions.
func (s State) IsTerminal() bool {
	return s.Tag == StateCompleted || s.Tag == StateTerminated
}

// transitionTable encodes the valid-transition matrix from spec §4.5. A
// false/absent entry means the transition is invalid.
var transitionTable = map[StateTag]map[StateTag]bool{
	StateIdle: {
		StateActive:     true,
		StateError:      true,
		StateTerminated: true,
	},
	StateActive: {
		StateActive:       true,
		StateBuffering:    true,
		StateBackpressure: true,
		StateError:        true,
		StateCompleted:    true,
		StateTerminated:   true,
	},
	StateBuffering: {
		StateActive:       true,
		StateBackpressure: true,
		StateError:        true,
		StateTerminated:   true,
	},
	StateBackpressure: {
		StateActive:    true,
		StateBuffering: true,
		StateError:     true,
		StateTerminated: true,
	},
	StateError: {
		// Error(recoverable) -> Active, Terminated. Error(fatal) -> Terminated only.
		StateActive:     true,
		StateTerminated: true,
	},
	StateCompleted:   {},
	StateTerminated:  {},
}

// canTransition applies the table, with the extra constraint that a fatal
// Error state (Recoverable=false) may only go to Terminated.
func canTransition(from State, to StateTag) bool {
	if from.IsTerminal() {
		return false
	}
	allowed, ok := transitionTable[from.Tag][to]
	if !ok || !allowed {
		return false
	}
	if from.Tag == StateError && !from.Recoverable && to != StateTerminated {
		return false
	}
	return true
}
