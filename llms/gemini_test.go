package llms

import (
	"testing"

	"github.com/reasoncore/engine/config"
)

func TestNewGeminiProviderFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LLMProviderConfig
		wantErr bool
	}{
		{
			name: "valid configuration",
			cfg: &config.LLMProviderConfig{
				Type:   "gemini",
				Model:  "gemini-2.0-flash",
				APIKey: "test-api-key",
			},
			wantErr: false,
		},
		{
			name: "missing API key",
			cfg: &config.LLMProviderConfig{
				Type:  "gemini",
				Model: "gemini-2.0-flash",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewGeminiProviderFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewGeminiProviderFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && provider.GetModelName() != tt.cfg.Model {
				t.Errorf("GetModelName() = %q, want %q", provider.GetModelName(), tt.cfg.Model)
			}
		})
	}
}

func TestJsonSchemaToGeminiSchema(t *testing.T) {
	params := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"query"},
	}

	schema, err := jsonSchemaToGeminiSchema(params)
	if err != nil {
		t.Fatalf("jsonSchemaToGeminiSchema() error = %v", err)
	}
	if schema == nil {
		t.Fatal("expected non-nil schema")
	}
}

func TestConvertToGeminiFunctions(t *testing.T) {
	tools := []ToolDefinition{
		{
			Name:        "search_code",
			Description: "search the codebase",
			Parameters: map[string]interface{}{
				"type": "object",
			},
		},
	}

	decls := convertToGeminiFunctions(tools)
	if len(decls) != 1 || decls[0].Name != "search_code" {
		t.Errorf("unexpected function declarations: %+v", decls)
	}
}
