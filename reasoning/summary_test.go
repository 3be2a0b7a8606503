package reasoning

import "testing"

func TestSummarizeAllSuccessful(t *testing.T) {
	summary := Summarize([]ToolOutcome{
		{Name: "add_repository", Success: true, Data: map[string]interface{}{"name": "hector"}},
		{Name: "search_code", Success: true, Data: map[string]interface{}{"query": "reasoning loop"}},
	})

	for _, want := range []string{
		"Okay, I've finished those tasks.",
		"repository 'hector' was added",
		"code search for 'reasoning loop' completed",
	} {
		if !contains(summary, want) {
			t.Errorf("summary %q missing %q", summary, want)
		}
	}
	if contains(summary, "Failed actions") {
		t.Errorf("summary should not mention failures when none occurred: %q", summary)
	}
}

func TestSummarizeMixedOutcomes(t *testing.T) {
	summary := Summarize([]ToolOutcome{
		{Name: "edit_file", Success: true, Data: map[string]interface{}{"path": "main.go"}},
		{Name: "search_code", Success: false, Error: "index unavailable"},
	})

	if !contains(summary, "file 'main.go' was edited") {
		t.Errorf("summary missing successful outcome: %q", summary)
	}
	if !contains(summary, "'search_code' failed: index unavailable") {
		t.Errorf("summary missing failure detail: %q", summary)
	}
}

func TestSummarizeEmptyOutcomes(t *testing.T) {
	summary := Summarize(nil)
	if summary != "The requested actions were processed.\n\n" {
		t.Errorf("unexpected summary for empty outcomes: %q", summary)
	}
}

func TestFormatOutcomeUnknownToolFallsBackToGeneric(t *testing.T) {
	out := formatOutcome(ToolOutcome{Name: "custom_tool", Success: true})
	if out != "'custom_tool' completed successfully" {
		t.Errorf("unexpected fallback format: %q", out)
	}
}
