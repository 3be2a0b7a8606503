package streaming

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reasoncore/engine/breaker"
	"github.com/reasoncore/engine/events"
)

func newTestEngine(maxConcurrent int, maxBufferSize uint64, policy OverflowPolicy) *Engine {
	return NewEngine(maxConcurrent, maxBufferSize, policy, breaker.New(), events.NewEmitter())
}

func TestStartRejectsOverCapacity(t *testing.T) {
	e := newTestEngine(1, 1024, DropOldest{})
	require.NoError(t, e.Start("s1", Kind("text")))
	err := e.Start("s2", Kind("text"))
	require.Error(t, err)
}

func TestStartRejectsDuplicateID(t *testing.T) {
	e := newTestEngine(2, 1024, DropOldest{})
	require.NoError(t, e.Start("s1", Kind("text")))
	require.Error(t, e.Start("s1", Kind("text")))
}

func TestProcessAdvancesToActiveAndAccumulatesBytes(t *testing.T) {
	e := newTestEngine(2, 1024, DropOldest{})
	require.NoError(t, e.Start("s1", Kind("text")))

	st, err := e.Process("s1", Chunk{ID: "c1", Data: []byte("hello"), Kind: ChunkText})
	require.NoError(t, err)
	require.Equal(t, StateActive, st.Tag)
	require.Equal(t, uint64(5), st.BytesProcessed)
}

func TestProcessRejectedAfterCompletion(t *testing.T) {
	e := newTestEngine(2, 1024, DropOldest{})
	require.NoError(t, e.Start("s1", Kind("text")))
	_, err := e.Complete("s1")
	require.NoError(t, err)

	_, err = e.Process("s1", Chunk{ID: "c1", Data: []byte("x")})
	require.Error(t, err)
}

func TestBufferDropNewestRejectsOverflow(t *testing.T) {
	b := NewBuffer("buf", 10, DropNewest{})
	require.NoError(t, b.Add(Chunk{ID: "a", Data: make([]byte, 8)}))
	err := b.Add(Chunk{ID: "b", Data: make([]byte, 8)})
	require.Error(t, err)
	var berr *BufferError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, "Dropped", berr.Code)
	require.Equal(t, 1, b.Len())
}

func TestBufferDropOldestEvictsToFit(t *testing.T) {
	b := NewBuffer("buf", 10, DropOldest{})
	require.NoError(t, b.Add(Chunk{ID: "a", Data: make([]byte, 6)}))
	require.NoError(t, b.Add(Chunk{ID: "b", Data: make([]byte, 6)}))

	require.Equal(t, 1, b.Len())
	_, dropped := b.Counters()
	require.Equal(t, uint64(1), dropped)
}

func TestBufferExpandGrowsThenFallsBack(t *testing.T) {
	b := NewBuffer("buf", 4, Expand{MaxExpansion: 4})
	require.NoError(t, b.Add(Chunk{ID: "a", Data: make([]byte, 4)}))
	require.NoError(t, b.Add(Chunk{ID: "b", Data: make([]byte, 4)}))
	require.Equal(t, uint64(8), b.MaxSize())

	require.NoError(t, b.Add(Chunk{ID: "c", Data: make([]byte, 4)}))
	require.Equal(t, uint64(8), b.MaxSize())
	require.Equal(t, 2, b.Len())
}

func TestStateTransitionTableRejectsCompletedToActive(t *testing.T) {
	completed := State{Tag: StateCompleted}
	require.False(t, canTransition(completed, StateActive))
}

func TestFatalErrorOnlyTransitionsToTerminated(t *testing.T) {
	fatal := State{Tag: StateError, Recoverable: false}
	require.False(t, canTransition(fatal, StateActive))
	require.True(t, canTransition(fatal, StateTerminated))
}

func TestRecoverableErrorMayReturnToActive(t *testing.T) {
	recoverable := State{Tag: StateError, Recoverable: true}
	require.True(t, canTransition(recoverable, StateActive))
}

func TestHandleBackpressureRecoversBelowThreshold(t *testing.T) {
	e := newTestEngine(2, 1024, DropOldest{})
	require.NoError(t, e.Start("s1", Kind("text")))
	_, err := e.Process("s1", Chunk{ID: "c1", Data: []byte("hi")})
	require.NoError(t, err)

	st, err := e.HandleBackpressure("s1", 0.95)
	require.NoError(t, err)
	require.Equal(t, StateBackpressure, st.Tag)

	st, err = e.HandleBackpressure("s1", 0.2)
	require.NoError(t, err)
	require.Equal(t, StateActive, st.Tag)
}

// TestHandleErrorRecoversWithinBreakerBudget exercises the end-to-end
// stream-recovery scenario: a transient network failure opens below the
// breaker's threshold, the exponential-backoff loop runs, and the stream
// returns to Active once the retry succeeds.
func TestHandleErrorRecoversWithinBreakerBudget(t *testing.T) {
	b := breaker.NewWithConfig(breaker.Config{
		AdaptiveEnabled:  false,
		Thresholds:       map[breaker.Category]uint32{breaker.Network: 5},
		RecoveryTimeouts: map[breaker.Category]time.Duration{breaker.Network: time.Second},
	})
	e := NewEngine(2, 1024, DropOldest{}, b, events.NewEmitter())
	e.recovery = RecoveryPolicy{BaseDelay: time.Millisecond, Factor: 2, CapDelay: 10 * time.Millisecond, MaxAttempts: 3}

	require.NoError(t, e.Start("s1", Kind("text")))

	st := e.HandleError(context.Background(), "s1", breaker.Network, errors.New("connection reset"), true)
	require.Equal(t, StateActive, st.Tag)
	require.Equal(t, breaker.Closed, b.StateOf(breaker.Network))
}

func TestHandleErrorTerminatesWhenUnrecoverable(t *testing.T) {
	e := newTestEngine(2, 1024, DropOldest{})
	require.NoError(t, e.Start("s1", Kind("text")))

	st := e.HandleError(context.Background(), "s1", breaker.Configuration, errors.New("bad config"), false)
	require.Equal(t, StateTerminated, st.Tag)
	require.Equal(t, 0, e.ActiveCount())
}

func TestTerminateDrainsBuffer(t *testing.T) {
	e := newTestEngine(2, 1024, DropOldest{})
	require.NoError(t, e.Start("s1", Kind("text")))
	_, err := e.Process("s1", Chunk{ID: "c1", Data: []byte("payload")})
	require.NoError(t, err)

	remaining := e.Terminate("s1", "client disconnected")
	require.Len(t, remaining, 1)
	require.Equal(t, 0, e.ActiveCount())
}
