package reasoning

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reasoncore/engine/intent"
)

// maxContextSummaryRunes bounds the truncated last-assistant-text carried
// into a continuation's synthesized system message.
const maxContextSummaryRunes = 500

// Step records one unit of reasoning-loop progress: an LLM turn or a tool
// orchestration. Steps feed SessionCompleted's steps_executed count and
// the session's ToolsUsed list.
type Step struct {
	Type       string // "llm_interaction" or "tool_orchestration"
	Label      string
	Success    bool
	Error      string
	ToolNames  []string
	OccurredAt time.Time
}

// Metadata carries session-lifecycle bookkeeping that survives into a
// continuation's synthesized context, mirroring the original
// session_metadata.is_continuation flag.
type Metadata struct {
	IsContinuation   bool
	SuccessfulTools  map[string]bool
	CompletionReason string
	LastAssistant    string
}

// Session is one reasoning loop run: its history of steps, the tools it
// has marked successful, and (if continued) the prior session's summary.
type Session struct {
	ID          string
	InputText   string
	Metadata    Metadata
	History     []Step
	Success     bool
	StartedAt   time.Time
	CompletedAt time.Time

	lastAnalyzedText string
	lastIntentValid  bool
	lastIntent       intent.Intent
}

// NewSession starts a fresh, non-continued session for inputText.
func NewSession(inputText string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		InputText: inputText,
		Metadata: Metadata{
			SuccessfulTools: make(map[string]bool),
		},
		StartedAt: time.Now(),
	}
}

// NewContinuation starts a session that carries forward prev's tool-success
// set, last assistant text, and completion reason, per SPEC_FULL.md's
// session-continuation supplement.
func NewContinuation(inputText string, prev *Session) *Session {
	s := NewSession(inputText)
	if prev == nil {
		return s
	}
	s.Metadata.IsContinuation = true
	for name, ok := range prev.Metadata.SuccessfulTools {
		s.Metadata.SuccessfulTools[name] = ok
	}
	s.Metadata.CompletionReason = prev.Metadata.CompletionReason
	s.Metadata.LastAssistant = prev.Metadata.LastAssistant
	return s
}

// RecordAssistantText updates the text a future continuation would quote
// as the prior session's last assistant turn.
func (s *Session) RecordAssistantText(text string) {
	if text != "" {
		s.Metadata.LastAssistant = text
	}
}

// ContextSummary renders the prior session's tool-success set, truncated
// last assistant turn, and completion reason into the text the loop
// inserts as a continuation's synthesized system message. Returns "" for
// a non-continuation session.
func (s *Session) ContextSummary() string {
	if !s.Metadata.IsContinuation {
		return ""
	}

	var b strings.Builder
	if len(s.Metadata.SuccessfulTools) > 0 {
		names := make([]string, 0, len(s.Metadata.SuccessfulTools))
		for name, ok := range s.Metadata.SuccessfulTools {
			if ok {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			b.WriteString("Previously completed tools: ")
			b.WriteString(strings.Join(names, ", "))
			b.WriteString(".\n")
		}
	}
	if s.Metadata.LastAssistant != "" {
		b.WriteString("Last assistant response: ")
		b.WriteString(truncateRunes(s.Metadata.LastAssistant, maxContextSummaryRunes))
		b.WriteString("\n")
	}
	if s.Metadata.CompletionReason != "" {
		b.WriteString("Prior session ended because: ")
		b.WriteString(s.Metadata.CompletionReason)
		b.WriteString("\n")
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// MarkToolSuccessful records name in the session's tool-success set.
func (s *Session) MarkToolSuccessful(name string) {
	s.Metadata.SuccessfulTools[name] = true
}

// AddStep appends a step to the session's history. Steps are never
// removed or mutated once added.
func (s *Session) AddStep(step Step) {
	if step.OccurredAt.IsZero() {
		step.OccurredAt = time.Now()
	}
	s.History = append(s.History, step)
}

// SetCompleted marks the session terminal with the given outcome and
// reason, recording the reason for a future continuation's summary.
func (s *Session) SetCompleted(success bool, reason string) {
	s.Success = success
	s.Metadata.CompletionReason = reason
	s.CompletedAt = time.Now()
}

// cachedIntent returns the result of the session's last Classify call when
// text matches what was last analyzed, so the loop never invokes the
// intent analyzer twice in a row on identical text for the same session.
func (s *Session) cachedIntent(text string) (intent.Intent, bool) {
	if s.lastIntentValid && text == s.lastAnalyzedText {
		return s.lastIntent, true
	}
	return intent.ProvidesFinalAnswer, false
}

func (s *Session) rememberIntent(text string, in intent.Intent) {
	s.lastAnalyzedText = text
	s.lastIntent = in
	s.lastIntentValid = true
}

// ToolsUsed returns the distinct tool names touched across the session's
// history, for the SessionCompleted event's tools_used field.
func (s *Session) ToolsUsed() []string {
	seen := make(map[string]bool)
	var names []string
	for _, step := range s.History {
		for _, n := range step.ToolNames {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}
