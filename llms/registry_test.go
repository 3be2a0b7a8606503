package llms

import (
	"context"
	"testing"

	"github.com/reasoncore/engine/config"
)

type mockLLMProvider struct {
	name  string
	model string
}

func (m *mockLLMProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, int, error) {
	return "mock response", nil, 0, nil
}

func (m *mockLLMProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Type: "done"}
	close(ch)
	return ch, nil
}

func (m *mockLLMProvider) GetModelName() string    { return m.model }
func (m *mockLLMProvider) GetMaxTokens() int       { return 1000 }
func (m *mockLLMProvider) GetTemperature() float64 { return 0.7 }
func (m *mockLLMProvider) Close() error            { return nil }

func TestNewLLMRegistry(t *testing.T) {
	registry := NewLLMRegistry()
	if registry.List() == nil {
		t.Error("List() should not return nil")
	}
}

func TestLLMRegistry_RegisterAndGet(t *testing.T) {
	registry := NewLLMRegistry()
	provider := &mockLLMProvider{name: "test-provider", model: "test-model"}

	if err := registry.RegisterLLM("test-provider", provider); err != nil {
		t.Fatalf("RegisterLLM() error = %v", err)
	}

	got, err := registry.GetLLM("test-provider")
	if err != nil {
		t.Fatalf("GetLLM() error = %v", err)
	}
	if got != provider {
		t.Error("expected registered provider to match")
	}
}

func TestLLMRegistry_RegisterLLM_Duplicate(t *testing.T) {
	registry := NewLLMRegistry()
	provider := &mockLLMProvider{name: "test-provider"}

	if err := registry.RegisterLLM("test-provider", provider); err != nil {
		t.Fatalf("RegisterLLM() error = %v", err)
	}
	if err := registry.RegisterLLM("test-provider", provider); err == nil {
		t.Error("expected error when registering duplicate provider")
	}
}

func TestLLMRegistry_RegisterLLM_RejectsEmptyName(t *testing.T) {
	registry := NewLLMRegistry()
	if err := registry.RegisterLLM("", &mockLLMProvider{}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestLLMRegistry_GetLLM_NotFound(t *testing.T) {
	registry := NewLLMRegistry()
	if _, err := registry.GetLLM("missing"); err == nil {
		t.Error("expected error for missing provider")
	}
}

func TestLLMRegistry_CreateLLMFromConfig_UnsupportedType(t *testing.T) {
	registry := NewLLMRegistry()
	_, err := registry.CreateLLMFromConfig("bad", &config.LLMProviderConfig{Type: "unsupported"})
	if err == nil {
		t.Error("expected error for unsupported LLM type")
	}
}

func TestLLMRegistry_CreateLLMFromConfig_Ollama(t *testing.T) {
	registry := NewLLMRegistry()
	provider, err := registry.CreateLLMFromConfig("local", &config.LLMProviderConfig{
		Type:  "ollama",
		Model: "llama3.2",
		Host:  "http://localhost:11434",
	})
	if err != nil {
		t.Fatalf("CreateLLMFromConfig() error = %v", err)
	}
	if provider.GetModelName() != "llama3.2" {
		t.Errorf("GetModelName() = %q, want llama3.2", provider.GetModelName())
	}
}
