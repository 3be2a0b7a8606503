package context

import (
	"testing"
)

func TestNewConversationHistoryRejectsEmptySessionID(t *testing.T) {
	if _, err := NewConversationHistory(""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestAddTextAppendsMessageWithSingleTextPart(t *testing.T) {
	ch, err := NewConversationHistory("s1")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := ch.AddUserText("hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Role != RoleUser {
		t.Fatalf("expected role %q, got %q", RoleUser, msg.Role)
	}
	if got := msg.Text(); got != "hello" {
		t.Fatalf("expected text %q, got %q", "hello", got)
	}
	if ch.GetMessageCount() != 1 {
		t.Fatalf("expected 1 message, got %d", ch.GetMessageCount())
	}
}

func TestAddMessageRejectsUnknownRole(t *testing.T) {
	ch, _ := NewConversationHistory("s1")
	if _, err := ch.AddMessage("narrator", []Part{TextPart("x")}, nil); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestAddMessageRejectsEmptyParts(t *testing.T) {
	ch, _ := NewConversationHistory("s1")
	if _, err := ch.AddMessage(RoleUser, nil, nil); err == nil {
		t.Fatal("expected error for empty parts")
	}
}

func TestToolCallAndToolResultRoundTrip(t *testing.T) {
	ch, _ := NewConversationHistory("s1")
	_, err := ch.AddMessage(RoleAssistant, []Part{
		ToolCallPart("call_1", "search_code", map[string]interface{}{"query": "foo"}),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = ch.AddMessage(RoleTool, []Part{
		ToolResultPart("call_1", "search_code", map[string]interface{}{"matches": 3}),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	toolMsgs := ch.GetMessagesByRole(RoleTool, 0)
	if len(toolMsgs) != 1 {
		t.Fatalf("expected 1 tool message, got %d", len(toolMsgs))
	}
	part := toolMsgs[0].Parts[0]
	if part.Kind != PartToolResult || part.ToolCallID != "call_1" {
		t.Fatalf("unexpected tool result part: %+v", part)
	}
}

func TestTrimMessagesIfNeededBoundsHistory(t *testing.T) {
	ch, err := NewConversationHistoryWithMax("s1", MinMaxMessages+1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := ch.AddUserText("msg", nil); err != nil {
			t.Fatal(err)
		}
	}
	if ch.GetMessageCount() > MinMaxMessages+1 {
		t.Fatalf("expected history capped at %d, got %d", MinMaxMessages+1, ch.GetMessageCount())
	}
}

func TestGetRecentMessagesReturnsTailInOrder(t *testing.T) {
	ch, _ := NewConversationHistory("s1")
	for _, text := range []string{"a", "b", "c"} {
		if _, err := ch.AddUserText(text, nil); err != nil {
			t.Fatal(err)
		}
	}
	recent := ch.GetRecentMessages(2)
	if len(recent) != 2 || recent[0].Text() != "b" || recent[1].Text() != "c" {
		t.Fatalf("unexpected recent messages: %+v", recent)
	}
}

func TestLastAssistantTextFindsMostRecent(t *testing.T) {
	ch, _ := NewConversationHistory("s1")
	if _, ok := ch.LastAssistantText(); ok {
		t.Fatal("expected no assistant message yet")
	}
	if _, err := ch.AddAssistantText("first", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := ch.AddUserText("interrupt", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := ch.AddAssistantText("second", nil); err != nil {
		t.Fatal(err)
	}
	text, ok := ch.LastAssistantText()
	if !ok || text != "second" {
		t.Fatalf("expected %q, got %q (ok=%v)", "second", text, ok)
	}
}

func TestGetStatsCountsByRole(t *testing.T) {
	ch, _ := NewConversationHistory("s1")
	_, _ = ch.AddUserText("u", nil)
	_, _ = ch.AddAssistantText("a", nil)
	_, _ = ch.AddSystemText("s", nil)
	_, _ = ch.AddMessage(RoleTool, []Part{ToolResultPart("1", "t", "ok")}, nil)

	stats := ch.GetStats()
	if stats.UserMessages != 1 || stats.AssistantMessages != 1 || stats.SystemMessages != 1 || stats.ToolMessages != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
