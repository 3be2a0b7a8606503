package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/reasoncore/engine/config"
)

func TestNewAnthropicProvider(t *testing.T) {
	provider := NewAnthropicProvider("sk-ant-test-key", "claude-3-5-sonnet-20241022")

	if provider.GetModelName() != "claude-3-5-sonnet-20241022" {
		t.Errorf("GetModelName() = %v, want claude-3-5-sonnet-20241022", provider.GetModelName())
	}
	if provider.GetMaxTokens() != 4096 {
		t.Errorf("GetMaxTokens() = %v, want 4096", provider.GetMaxTokens())
	}
	if provider.GetTemperature() != 1.0 {
		t.Errorf("GetTemperature() = %v, want 1.0", provider.GetTemperature())
	}
}

func TestAnthropicProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected /v1/messages, got %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-ant-test-key" {
			t.Errorf("expected x-api-key header, got %s", got)
		}

		var req AnthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		resp := AnthropicResponse{
			Content: []AnthropicContent{{Type: "text", Text: "Hello! How can I help you today?"}},
			Usage:   AnthropicUsage{InputTokens: 10, OutputTokens: 15},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAnthropicProviderFromConfig(&config.LLMProviderConfig{
		Type:   "anthropic",
		Model:  "claude-3-5-sonnet-20241022",
		Host:   server.URL,
		APIKey: "sk-ant-test-key",
	})
	if err != nil {
		t.Fatalf("NewAnthropicProviderFromConfig() error = %v", err)
	}

	text, toolCalls, tokens, err := provider.Generate(context.Background(), []Message{
		{Role: "user", Content: "Hello"},
	}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Hello! How can I help you today?" {
		t.Errorf("Generate() text = %q", text)
	}
	if len(toolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(toolCalls))
	}
	if tokens != 25 {
		t.Errorf("Generate() tokens = %d, want 25", tokens)
	}
}

func TestAnthropicProvider_Generate_WithTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req AnthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 || req.Tools[0].Name != "test_tool" {
			t.Errorf("expected test_tool, got %+v", req.Tools)
		}

		resp := AnthropicResponse{
			Content: []AnthropicContent{{
				Type:  "tool_use",
				ID:    "toolu_123",
				Name:  "test_tool",
				Input: map[string]interface{}{"param1": "value1"},
			}},
			Usage: AnthropicUsage{InputTokens: 20, OutputTokens: 10},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAnthropicProviderFromConfig(&config.LLMProviderConfig{
		Type:   "anthropic",
		Model:  "claude-3-5-sonnet-20241022",
		Host:   server.URL,
		APIKey: "sk-ant-test-key",
	})
	if err != nil {
		t.Fatalf("NewAnthropicProviderFromConfig() error = %v", err)
	}

	tools := []ToolDefinition{{
		Name:        "test_tool",
		Description: "A test tool",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"param1": map[string]interface{}{"type": "string"}},
		},
	}}

	text, toolCalls, tokens, err := provider.Generate(context.Background(), []Message{
		{Role: "user", Content: "Use the test tool"},
	}, tools)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
	if len(toolCalls) != 1 || toolCalls[0].ID != "toolu_123" || toolCalls[0].Name != "test_tool" {
		t.Errorf("unexpected tool calls: %+v", toolCalls)
	}
	if tokens != 30 {
		t.Errorf("Generate() tokens = %d, want 30", tokens)
	}
}

func TestAnthropicProvider_Generate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer server.Close()

	provider, err := NewAnthropicProviderFromConfig(&config.LLMProviderConfig{
		Type:   "anthropic",
		Model:  "claude-3-5-sonnet-20241022",
		Host:   server.URL,
		APIKey: "sk-ant-test-key",
	})
	if err != nil {
		t.Fatalf("NewAnthropicProviderFromConfig() error = %v", err)
	}

	_, _, _, err = provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestAnthropicProvider_GenerateStreaming_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req AnthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("expected stream=true")
		}

		chunks := []string{
			`data: {"type": "content_block_start", "index": 0, "content_block": {"type": "text"}}`,
			`data: {"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": "Hello"}}`,
			`data: {"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": " there"}}`,
			`data: {"type": "content_block_stop", "index": 0}`,
			`data: {"type": "message_delta", "usage": {"output_tokens": 8}}`,
			`data: {"type": "message_stop"}`,
		}
		for _, c := range chunks {
			_, _ = w.Write([]byte(c + "\n\n"))
		}
	}))
	defer server.Close()

	provider, err := NewAnthropicProviderFromConfig(&config.LLMProviderConfig{
		Type:   "anthropic",
		Model:  "claude-3-5-sonnet-20241022",
		Host:   server.URL,
		APIKey: "sk-ant-test-key",
	})
	if err != nil {
		t.Fatalf("NewAnthropicProviderFromConfig() error = %v", err)
	}

	ch, err := provider.GenerateStreaming(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	if err != nil {
		t.Fatalf("GenerateStreaming() error = %v", err)
	}

	var text strings.Builder
	for chunk := range ch {
		if chunk.Type == "text" {
			text.WriteString(chunk.Text)
		}
	}
	if !strings.Contains(text.String(), "Hello") {
		t.Errorf("expected streamed text to contain Hello, got %q", text.String())
	}
}

func TestAnthropicProvider_Generate_RespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider, err := NewAnthropicProviderFromConfig(&config.LLMProviderConfig{
		Type:   "anthropic",
		Model:  "claude-3-5-sonnet-20241022",
		Host:   server.URL,
		APIKey: "sk-ant-test-key",
	})
	if err != nil {
		t.Fatalf("NewAnthropicProviderFromConfig() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err = provider.Generate(ctx, []Message{{Role: "user", Content: "Hello"}}, nil)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
