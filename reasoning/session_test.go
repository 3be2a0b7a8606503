package reasoning

import "testing"

func TestNewSession(t *testing.T) {
	s := NewSession("hello")
	if s.ID == "" {
		t.Error("expected a generated session id")
	}
	if s.Metadata.IsContinuation {
		t.Error("fresh session should not be a continuation")
	}
	if s.ContextSummary() != "" {
		t.Error("fresh session should have no context summary")
	}
}

func TestNewContinuation(t *testing.T) {
	prev := NewSession("first request")
	prev.MarkToolSuccessful("search_code")
	prev.RecordAssistantText("I found three matches.")
	prev.SetCompleted(true, "LLM intent (provides_final_answer) indicates completion.")

	cont := NewContinuation("follow up request", prev)
	if !cont.Metadata.IsContinuation {
		t.Fatal("expected continuation flag to be set")
	}

	summary := cont.ContextSummary()
	if summary == "" {
		t.Fatal("expected a non-empty context summary")
	}
	for _, want := range []string{"search_code", "I found three matches.", "indicates completion"} {
		if !contains(summary, want) {
			t.Errorf("summary %q missing %q", summary, want)
		}
	}
}

func TestContextSummaryTruncatesLastAssistantText(t *testing.T) {
	prev := NewSession("x")
	long := make([]byte, maxContextSummaryRunes+100)
	for i := range long {
		long[i] = 'a'
	}
	prev.RecordAssistantText(string(long))

	cont := NewContinuation("y", prev)
	summary := cont.ContextSummary()
	if len(summary) > maxContextSummaryRunes+200 {
		t.Errorf("expected truncated summary, got length %d", len(summary))
	}
}

func TestSessionAddStepIsAppendOnly(t *testing.T) {
	s := NewSession("x")
	s.AddStep(Step{Type: "llm_interaction", Label: "first"})
	s.AddStep(Step{Type: "tool_orchestration", Label: "second", ToolNames: []string{"search_code"}})

	if len(s.History) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(s.History))
	}
	if s.History[0].Label != "first" || s.History[1].Label != "second" {
		t.Error("steps must preserve insertion order")
	}
}

func TestToolsUsedDedups(t *testing.T) {
	s := NewSession("x")
	s.AddStep(Step{ToolNames: []string{"search_code", "edit_file"}})
	s.AddStep(Step{ToolNames: []string{"search_code"}})

	used := s.ToolsUsed()
	if len(used) != 2 {
		t.Errorf("expected 2 distinct tools, got %v", used)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
