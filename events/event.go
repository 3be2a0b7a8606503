// Package events implements a deduplicated, typed event fan-out to
// subscribers (UI, logs, metrics).
package events

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Kind discriminates the closed set of event variants from spec §6, plus
// the lifecycle hooks the streaming engine and orchestrator raise
// internally (OrchestrationStarted, ChunkProcessed) that are not UI-facing but are
// still useful to metrics/log subscribers.
type Kind string

const (
	SessionStarted        Kind = "SessionStarted"
	SessionCompleted      Kind = "SessionCompleted"
	StepCompleted         Kind = "StepCompleted"
	ToolExecutionStarted  Kind = "ToolExecutionStarted"
	ToolExecutionCompleted Kind = "ToolExecutionCompleted"
	OrchestrationStarted  Kind = "OrchestrationStarted"
	Summary               Kind = "Summary"
	DecisionMade          Kind = "DecisionMade"
	StreamChunkReceived   Kind = "StreamChunkReceived"
	ChunkProcessed        Kind = "ChunkProcessed"
	ErrorOccurred         Kind = "ErrorOccurred"
	TokenUsageReceived    Kind = "TokenUsageReceived"
)

// Event is a single emitted occurrence. Payload carries the variant's
// fields; Text, when non-empty, is the field deduplication hashes on.
type Event struct {
	Kind      Kind
	SessionID string
	Timestamp time.Time
	Sequence  uint64
	Text      string
	Payload   map[string]interface{}
}

// Subscriber receives every non-deduplicated event.
type Subscriber interface {
	Notify(Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(Event)

func (f SubscriberFunc) Notify(e Event) { f(e) }

// Emitter performs SHA-1-based deduplication of free-form text payloads
// and fans out surviving events to every subscriber, tagging each with a
// per-session monotonic sequence number.
type Emitter struct {
	mu          sync.Mutex
	subscribers []Subscriber
	lastHash    map[string]string // sessionID -> last emitted text hash
	sequence    map[string]uint64
}

// NewEmitter creates an emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{
		lastHash: make(map[string]string),
		sequence: make(map[string]uint64),
	}
}

// Subscribe registers a subscriber to receive future events.
func (e *Emitter) Subscribe(s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, s)
}

// Emit delivers evt to every subscriber unless its Text payload's SHA-1
// matches the last emitted hash for this session, in which case it is
// dropped silently.
func (e *Emitter) Emit(evt Event) {
	e.mu.Lock()

	if evt.Text != "" {
		h := hashText(evt.Text)
		if e.lastHash[evt.SessionID] == h {
			e.mu.Unlock()
			return
		}
		e.lastHash[evt.SessionID] = h
	}

	e.sequence[evt.SessionID]++
	evt.Sequence = e.sequence[evt.SessionID]
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	subs := append([]Subscriber(nil), e.subscribers...)
	e.mu.Unlock()

	for _, s := range subs {
		s.Notify(evt)
	}
}

func hashText(text string) string {
	sum := sha1.Sum([]byte(text))
	return fmt.Sprintf("%x", sum)
}

// MarshalJSON renders an event's payload deterministically for logging
// sinks that want a structured line.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias struct {
		Kind      Kind                   `json:"kind"`
		SessionID string                 `json:"session_id"`
		Timestamp time.Time              `json:"timestamp"`
		Sequence  uint64                 `json:"sequence"`
		Payload   map[string]interface{} `json:"payload,omitempty"`
	}
	return json.Marshal(alias{e.Kind, e.SessionID, e.Timestamp, e.Sequence, e.Payload})
}
