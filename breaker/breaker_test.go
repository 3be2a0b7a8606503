package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpensAfterThreshold(t *testing.T) {
	b := New()
	require.True(t, b.AllowsFor(Network))
	b.RecordFailure(Network)
	b.RecordFailure(Network)
	require.Equal(t, Closed, b.StateOf(Network))
	b.RecordFailure(Network)
	require.Equal(t, Open, b.StateOf(Network))
	require.False(t, b.AllowsFor(Network))
}

func TestOpenOnOneCategoryDoesNotBlockAnother(t *testing.T) {
	b := New()
	b.RecordFailure(Resource) // threshold 1
	require.Equal(t, Open, b.StateOf(Resource))
	require.False(t, b.AllowsFor(Resource))
	require.True(t, b.AllowsFor(Network))
}

func TestHalfOpenAfterRecoveryTimeout(t *testing.T) {
	b := NewWithConfig(Config{
		AdaptiveEnabled:  false,
		Thresholds:       map[Category]uint32{Resource: 1},
		RecoveryTimeouts: map[Category]time.Duration{Resource: 10 * time.Millisecond},
	})
	b.RecordFailure(Resource)
	require.False(t, b.AllowsFor(Resource))
	time.Sleep(15 * time.Millisecond)
	require.True(t, b.AllowsFor(Resource))
	require.Equal(t, HalfOpen, b.StateOf(Resource))
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := NewWithConfig(Config{
		AdaptiveEnabled:  false,
		Thresholds:       map[Category]uint32{Resource: 1},
		RecoveryTimeouts: map[Category]time.Duration{Resource: 5 * time.Millisecond},
	})
	b.RecordFailure(Resource)
	time.Sleep(10 * time.Millisecond)
	require.True(t, b.AllowsFor(Resource))
	b.RecordFailure(Resource)
	require.Equal(t, Open, b.StateOf(Resource))
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b := NewWithConfig(Config{
		AdaptiveEnabled:  false,
		Thresholds:       map[Category]uint32{Resource: 1},
		RecoveryTimeouts: map[Category]time.Duration{Resource: 5 * time.Millisecond},
	})
	b.RecordFailure(Resource)
	time.Sleep(10 * time.Millisecond)
	require.True(t, b.AllowsFor(Resource))
	b.RecordSuccess(Resource)
	require.Equal(t, Closed, b.StateOf(Resource))
}

func TestAdaptiveThresholdGrowsForNetwork(t *testing.T) {
	b := New()
	for i := 0; i < 3; i++ {
		b.RecordFailure(Network)
	}
	require.Equal(t, Open, b.StateOf(Network))
	// Recover and fail again; the adapted threshold should require one more
	// failure than the original 3.
	b.RecordSuccess(Network)
	for i := 0; i < 3; i++ {
		b.RecordFailure(Network)
	}
	require.Equal(t, Closed, b.StateOf(Network))
	b.RecordFailure(Network)
	require.Equal(t, Open, b.StateOf(Network))
}

func TestResourceThresholdStaysPinned(t *testing.T) {
	b := New()
	b.RecordFailure(Resource)
	require.Equal(t, Open, b.StateOf(Resource))
	b.RecordSuccess(Resource)
	b.RecordFailure(Resource)
	require.Equal(t, Open, b.StateOf(Resource))
}
