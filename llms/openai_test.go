package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reasoncore/engine/config"
)

func newTestOpenAIProvider(t *testing.T, url string) *OpenAIProvider {
	t.Helper()
	provider, err := NewOpenAIProviderFromConfig(&config.LLMProviderConfig{
		Type:   "openai",
		Model:  "gpt-4o",
		Host:   url,
		APIKey: "sk-test-key",
	})
	if err != nil {
		t.Fatalf("NewOpenAIProviderFromConfig() error = %v", err)
	}
	return provider
}

func TestOpenAIProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test-key" {
			t.Errorf("unexpected Authorization header: %s", got)
		}

		resp := OpenAIResponse{
			Choices: []Choice{{Message: OpenAIMessage{Role: "assistant", Content: "Hi there!"}}},
			Usage:   Usage{TotalTokens: 12},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(t, server.URL)

	text, toolCalls, tokens, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Hi there!" {
		t.Errorf("Generate() text = %q", text)
	}
	if len(toolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(toolCalls))
	}
	if tokens != 12 {
		t.Errorf("Generate() tokens = %d, want 12", tokens)
	}
}

func TestOpenAIProvider_Generate_WithToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req OpenAIRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 {
			t.Errorf("expected 1 tool, got %d", len(req.Tools))
		}

		resp := OpenAIResponse{
			Choices: []Choice{{
				Message: OpenAIMessage{
					Role: "assistant",
					ToolCalls: []OpenAIToolCall{{
						ID:   "call_1",
						Type: "function",
						Function: OpenAIFunctionCall{
							Name:      "search_code",
							Arguments: `{"query":"foo"}`,
						},
					}},
				},
			}},
			Usage: Usage{TotalTokens: 20},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(t, server.URL)

	tools := []ToolDefinition{{Name: "search_code", Description: "search", Parameters: map[string]interface{}{"type": "object"}}}
	_, toolCalls, _, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "find foo"}}, tools)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(toolCalls) != 1 || toolCalls[0].Name != "search_code" || toolCalls[0].Arguments["query"] != "foo" {
		t.Errorf("unexpected tool calls: %+v", toolCalls)
	}
}

func TestOpenAIProvider_Generate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(t, server.URL)

	_, _, _, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOpenAIProvider_GenerateStreaming_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
			`data: {"choices":[{"delta":{"content":"lo"}}]}`,
			`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			`data: [DONE]`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte(l + "\n"))
		}
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(t, server.URL)

	ch, err := provider.GenerateStreaming(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	if err != nil {
		t.Fatalf("GenerateStreaming() error = %v", err)
	}

	var text string
	for chunk := range ch {
		if chunk.Type == "text" {
			text += chunk.Text
		}
	}
	if text != "Hello" {
		t.Errorf("expected streamed text %q, got %q", "Hello", text)
	}
}

func TestOpenAIProvider_UsesMaxCompletionTokensForOModels(t *testing.T) {
	provider := newTestOpenAIProvider(t, "http://example.invalid")
	provider.config.Model = "o1-preview"

	req := provider.buildRequest([]Message{{Role: "user", Content: "hi"}}, false, nil)
	if req.MaxCompletionTokens == 0 || req.MaxTokens != 0 {
		t.Errorf("expected max_completion_tokens to be set for o1 models, got %+v", req)
	}
}
