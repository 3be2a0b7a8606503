package orchestrator

import (
	"container/ring"
	"encoding/json"
	"sync"
	"time"
)

const (
	loopWindowEntries = 15
	loopWindowSpan    = 60 * time.Second
	loopCountSpan     = 30 * time.Second
)

// RecoveryDecision is what the loop detector tells Orchestrate to do about
// a tool call that has repeated past the identical-call threshold.
type RecoveryDecision int

const (
	Proceed RecoveryDecision = iota
	Skip
	Alternative
	Stop
	Retry
)

type callRecord struct {
	toolName  string
	argsKey   string
	at        time.Time
	valid     bool
}

// loopWindow tracks the last loopWindowEntries (name, args) calls made
// within loopWindowSpan, used to detect a model repeating itself.
type loopWindow struct {
	mu  sync.Mutex
	r   *ring.Ring
	now func() time.Time
}

func newLoopWindow() *loopWindow {
	return &loopWindow{r: ring.New(loopWindowEntries), now: time.Now}
}

func argsKey(args map[string]interface{}) string {
	b, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(b)
}

// countRecent returns how many identical (name, args) calls were recorded
// in the last loopCountSpan, evaluated before the current call is
// appended.
func (w *loopWindow) countRecent(toolName string, args map[string]interface{}) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := argsKey(args)
	cutoff := w.now().Add(-loopCountSpan)
	count := 0
	w.r.Do(func(v interface{}) {
		rec, ok := v.(callRecord)
		if !ok || !rec.valid {
			return
		}
		if rec.toolName == toolName && rec.argsKey == key && !rec.at.Before(cutoff) {
			count++
		}
	})
	return count
}

// record appends the current call to the ring. Entries older than
// loopWindowSpan are never actively evicted (container/ring has no
// in-place delete); countRecent's cutoff check makes them inert once
// they age out, and the fixed ring size bounds memory regardless.
func (w *loopWindow) record(toolName string, args map[string]interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.r.Value = callRecord{toolName: toolName, argsKey: argsKey(args), at: w.now(), valid: true}
	w.r = w.r.Next()
}
