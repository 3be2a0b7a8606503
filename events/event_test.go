package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct{ got []Event }

func (r *recorder) Notify(e Event) { r.got = append(r.got, e) }

func TestEmitAssignsMonotonicSequencePerSession(t *testing.T) {
	e := NewEmitter()
	r := &recorder{}
	e.Subscribe(r)

	e.Emit(Event{Kind: SessionStarted, SessionID: "s1"})
	e.Emit(Event{Kind: StepCompleted, SessionID: "s1"})
	e.Emit(Event{Kind: SessionStarted, SessionID: "s2"})

	require.Len(t, r.got, 3)
	require.Equal(t, uint64(1), r.got[0].Sequence)
	require.Equal(t, uint64(2), r.got[1].Sequence)
	require.Equal(t, uint64(1), r.got[2].Sequence)
}

func TestEmitDedupesIdenticalTextWithinSession(t *testing.T) {
	e := NewEmitter()
	r := &recorder{}
	e.Subscribe(r)

	e.Emit(Event{Kind: Summary, SessionID: "s1", Text: "done"})
	e.Emit(Event{Kind: Summary, SessionID: "s1", Text: "done"})
	e.Emit(Event{Kind: Summary, SessionID: "s1", Text: "different"})

	require.Len(t, r.got, 2)
}

func TestEmitDoesNotDedupeAcrossSessions(t *testing.T) {
	e := NewEmitter()
	r := &recorder{}
	e.Subscribe(r)

	e.Emit(Event{Kind: Summary, SessionID: "s1", Text: "done"})
	e.Emit(Event{Kind: Summary, SessionID: "s2", Text: "done"})

	require.Len(t, r.got, 2)
}

func TestEmitFansOutToMultipleSubscribers(t *testing.T) {
	e := NewEmitter()
	r1, r2 := &recorder{}, &recorder{}
	e.Subscribe(r1)
	e.Subscribe(r2)

	e.Emit(Event{Kind: SessionStarted, SessionID: "s1"})

	require.Len(t, r1.got, 1)
	require.Len(t, r2.got, 1)
}
