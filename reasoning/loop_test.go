package reasoning

import (
	"context"
	"testing"

	"github.com/reasoncore/engine/breaker"
	convctx "github.com/reasoncore/engine/context"
	"github.com/reasoncore/engine/events"
	"github.com/reasoncore/engine/intent"
	"github.com/reasoncore/engine/llms"
	"github.com/reasoncore/engine/orchestrator"
	"github.com/reasoncore/engine/resource"
	"github.com/reasoncore/engine/streaming"
)

// fakeExecutor always succeeds any tool call with an empty data payload.
type fakeExecutor struct {
	tools []orchestrator.ToolInfo
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args map[string]interface{}) (orchestrator.ToolResult, error) {
	return orchestrator.ToolResult{Success: true, Data: map[string]interface{}{}}, nil
}

func (f *fakeExecutor) AvailableTools() []orchestrator.ToolInfo { return f.tools }

// scriptedLLM replays a fixed sequence of turns, one per GenerateStreaming call.
type scriptedLLM struct {
	turns []llms.StreamChunk
	calls int
}

func (s *scriptedLLM) Generate(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition) (string, []llms.ToolCall, int, error) {
	return "", nil, 0, nil
}

func (s *scriptedLLM) GenerateStreaming(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	s.calls++
	ch := make(chan llms.StreamChunk, len(s.turns)+1)
	for _, c := range s.turns {
		ch <- c
	}
	ch <- llms.StreamChunk{Type: "done"}
	close(ch)
	return ch, nil
}

func (s *scriptedLLM) GetModelName() string    { return "test-model" }
func (s *scriptedLLM) GetMaxTokens() int       { return 4096 }
func (s *scriptedLLM) GetTemperature() float64 { return 0 }
func (s *scriptedLLM) Close() error            { return nil }

func newTestLoop(t *testing.T, llm llms.LLMProvider, analyzer intent.Analyzer) (*Loop, *convctx.ConversationHistory) {
	t.Helper()

	b := breaker.New()
	emitter := events.NewEmitter()
	orchCfg := orchestrator.DefaultConfig()
	orch := orchestrator.New(orchCfg, resource.NewManager(nil), b, emitter)
	engine := streaming.NewEngine(4, 1<<20, streaming.DropOldest{}, b, emitter)
	executor := &fakeExecutor{tools: []orchestrator.ToolInfo{{Name: "analyze_input"}}}

	cfg := DefaultConfig()
	cfg.MaxIterations = 3
	loop := NewLoop(cfg, llm, orch, executor, emitter, engine, NopStreamHandler{}, analyzer)

	history, err := convctx.NewConversationHistory("test-session")
	if err != nil {
		t.Fatalf("failed to build history: %v", err)
	}
	if _, err := history.AddUserText("please summarize this repository", nil); err != nil {
		t.Fatalf("failed to seed history: %v", err)
	}
	return loop, history
}

func TestRunEndsOnFinalAnswerIntent(t *testing.T) {
	llm := &scriptedLLM{turns: []llms.StreamChunk{{Type: "text", Text: "All done here."}}}
	analyzer := intent.AnalyzerFunc(func(text string, prior []string) (intent.Intent, error) {
		return intent.ProvidesFinalAnswer, nil
	})

	loop, history := newTestLoop(t, llm, analyzer)
	session, err := loop.Run(context.Background(), history, "please summarize this repository", nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !session.Success {
		t.Errorf("expected session to succeed, reason: %s", session.Metadata.CompletionReason)
	}
	if session.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}
}

func TestRunStopsAtMaxIterationsWithoutFinalAnswer(t *testing.T) {
	llm := &scriptedLLM{turns: []llms.StreamChunk{{Type: "text", Text: "still thinking"}}}
	analyzer := intent.AnalyzerFunc(func(text string, prior []string) (intent.Intent, error) {
		return intent.RequestsMoreInput, nil
	})

	loop, history := newTestLoop(t, llm, analyzer)
	session, err := loop.Run(context.Background(), history, "please summarize this repository", nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if session.Success {
		t.Error("session should not have succeeded when no final answer was ever given")
	}
}

func TestRunDoesNotReclassifyIdenticalText(t *testing.T) {
	classifyCalls := 0
	llm := &scriptedLLM{turns: []llms.StreamChunk{{Type: "text", Text: "same text every time"}}}
	analyzer := intent.AnalyzerFunc(func(text string, prior []string) (intent.Intent, error) {
		classifyCalls++
		return intent.RequestsMoreInput, nil
	})

	loop, history := newTestLoop(t, llm, analyzer)
	_, err := loop.Run(context.Background(), history, "please summarize this repository", nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if classifyCalls != 1 {
		t.Errorf("expected Classify to be called exactly once for repeated identical text, got %d", classifyCalls)
	}
}

func TestRunExecutesToolCalls(t *testing.T) {
	llm := &scriptedLLM{turns: []llms.StreamChunk{
		{Type: "tool_call", ToolCall: &llms.ToolCall{ID: "1", Name: "search_code", Arguments: map[string]interface{}{"query": "loop"}}},
	}}
	analyzer := intent.AnalyzerFunc(func(text string, prior []string) (intent.Intent, error) {
		return intent.ProvidesFinalAnswer, nil
	})

	loop, history := newTestLoop(t, llm, analyzer)
	session, err := loop.Run(context.Background(), history, "please summarize this repository", nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !session.Metadata.SuccessfulTools["search_code"] {
		t.Error("expected search_code to be marked successful")
	}
}

func TestNewContinuationSession(t *testing.T) {
	prev := NewSession("first")
	prev.MarkToolSuccessful("analyze_input")
	prev.SetCompleted(true, "done")

	llm := &scriptedLLM{turns: []llms.StreamChunk{{Type: "text", Text: "continuing now"}}}
	analyzer := intent.AnalyzerFunc(func(text string, prior []string) (intent.Intent, error) {
		return intent.ProvidesFinalAnswer, nil
	})

	loop, history := newTestLoop(t, llm, analyzer)
	session, err := loop.Run(context.Background(), history, "second request", prev)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !session.Metadata.IsContinuation {
		t.Error("expected resulting session to be marked as a continuation")
	}
}
