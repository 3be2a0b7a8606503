package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reasoncore/engine/config"
)

func newTestOllamaProvider(t *testing.T, url string) *OllamaProvider {
	t.Helper()
	provider, err := NewOllamaProviderFromConfig(&config.LLMProviderConfig{
		Type:  "ollama",
		Model: "llama3.2",
		Host:  url,
	})
	if err != nil {
		t.Fatalf("NewOllamaProviderFromConfig() error = %v", err)
	}
	return provider
}

func TestOllamaProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected /api/chat, got %s", r.URL.Path)
		}

		resp := OllamaResponse{
			Message:         OllamaMessage{Role: "assistant", Content: "Hello there"},
			Done:            true,
			PromptEvalCount: 5,
			EvalCount:       7,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := newTestOllamaProvider(t, server.URL)

	text, toolCalls, tokens, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Hello there" {
		t.Errorf("Generate() text = %q", text)
	}
	if len(toolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(toolCalls))
	}
	if tokens != 12 {
		t.Errorf("Generate() tokens = %d, want 12", tokens)
	}
}

func TestOllamaProvider_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := OllamaResponse{Error: "model not found"}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := newTestOllamaProvider(t, server.URL)

	_, _, _, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOllamaProvider_GenerateStreaming_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []OllamaStreamChunk{
			{Message: OllamaMessage{Content: "Hel"}},
			{Message: OllamaMessage{Content: "lo"}},
			{Done: true, PromptEvalCount: 3, EvalCount: 4},
		}
		for _, l := range lines {
			b, _ := json.Marshal(l)
			_, _ = w.Write(append(b, '\n'))
		}
	}))
	defer server.Close()

	provider := newTestOllamaProvider(t, server.URL)

	ch, err := provider.GenerateStreaming(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("GenerateStreaming() error = %v", err)
	}

	var text string
	var sawDone bool
	for chunk := range ch {
		switch chunk.Type {
		case "text":
			text += chunk.Text
		case "done":
			sawDone = true
			if chunk.Tokens != 7 {
				t.Errorf("expected 7 tokens, got %d", chunk.Tokens)
			}
		}
	}
	if text != "Hello" {
		t.Errorf("expected streamed text %q, got %q", "Hello", text)
	}
	if !sawDone {
		t.Error("expected a done chunk")
	}
}

func TestIsThinkingCapableModel(t *testing.T) {
	cases := map[string]bool{
		"qwen3:8b":        true,
		"qwen3-coder:30b": false,
		"deepseek-r1:7b":  true,
		"llama3.2":        false,
	}
	for model, want := range cases {
		if got := isThinkingCapableModel(model); got != want {
			t.Errorf("isThinkingCapableModel(%q) = %v, want %v", model, got, want)
		}
	}
}
