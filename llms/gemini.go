package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/reasoncore/engine/config"
)

// ============================================================================
// GEMINI PROVIDER IMPLEMENTATION
// Built on the official google.golang.org/genai client, not a hand-rolled
// REST wrapper.
// ============================================================================

// GeminiProvider implements LLMProvider for Google's Gemini API.
type GeminiProvider struct {
	config *config.LLMProviderConfig
	client *genai.Client
}

// NewGeminiProviderFromConfig creates a new Gemini provider from config.
func NewGeminiProviderFromConfig(cfg *config.LLMProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cfg.SetDefaults()

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{config: cfg, client: client}, nil
}

// GetModelName returns the model name.
func (p *GeminiProvider) GetModelName() string { return p.config.Model }

// GetMaxTokens returns the maximum tokens.
func (p *GeminiProvider) GetMaxTokens() int { return p.config.MaxTokens }

// GetTemperature returns the temperature.
func (p *GeminiProvider) GetTemperature() float64 { return p.config.Temperature }

// Close closes the provider. The genai client holds no resources to release.
func (p *GeminiProvider) Close() error { return nil }

// Generate generates a response given conversation messages.
func (p *GeminiProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, int, error) {
	contents, genConfig := p.buildRequest(messages, tools)

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, genConfig)
	if err != nil {
		return "", nil, 0, fmt.Errorf("gemini request failed: %w", err)
	}

	return p.parseResponse(resp)
}

// GenerateStreaming generates a streaming response given conversation messages.
func (p *GeminiProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	contents, genConfig := p.buildRequest(messages, tools)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		var totalTokens int
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.config.Model, contents, genConfig) {
			if err != nil {
				outputCh <- StreamChunk{Type: "error", Error: err}
				return
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						outputCh <- StreamChunk{Type: "text", Text: part.Text}
					}
					if part.FunctionCall != nil {
						rawArgs, _ := json.Marshal(part.FunctionCall.Args)
						id := part.FunctionCall.ID
						if id == "" {
							id = fmt.Sprintf("call_%s", part.FunctionCall.Name)
						}
						outputCh <- StreamChunk{
							Type: "tool_call",
							ToolCall: &ToolCall{
								ID:        id,
								Name:      part.FunctionCall.Name,
								Arguments: part.FunctionCall.Args,
								RawArgs:   string(rawArgs),
							},
						}
					}
				}
			}

			if resp.UsageMetadata != nil {
				totalTokens = int(resp.UsageMetadata.TotalTokenCount)
			}
		}

		outputCh <- StreamChunk{Type: "done", Tokens: totalTokens}
	}()

	return outputCh, nil
}

// buildRequest converts universal messages and tools into genai's request shape.
func (p *GeminiProvider) buildRequest(messages []Message, tools []ToolDefinition) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content
	var systemParts []*genai.Part

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if msg.Content != "" {
				systemParts = append(systemParts, genai.NewPartFromText(msg.Content))
			}

		case "tool":
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{
					genai.NewPartFromFunctionResponse(msg.Name, map[string]interface{}{
						"content": msg.Content,
					}),
				},
			})

		default:
			role := "user"
			if msg.Role == "assistant" {
				role = "model"
			}

			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, tc.Arguments))
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: role, Parts: parts})
			}
		}
	}

	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(p.config.MaxTokens),
	}
	if p.config.Temperature > 0 {
		temp := float32(p.config.Temperature)
		genConfig.Temperature = &temp
	}
	if len(systemParts) > 0 {
		genConfig.SystemInstruction = &genai.Content{Parts: systemParts}
	}
	if len(tools) > 0 {
		genConfig.Tools = []*genai.Tool{{FunctionDeclarations: convertToGeminiFunctions(tools)}}
	}

	return contents, genConfig
}

// convertToGeminiFunctions converts tool definitions to genai function declarations.
func convertToGeminiFunctions(tools []ToolDefinition) []*genai.FunctionDeclaration {
	result := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if schema, err := jsonSchemaToGeminiSchema(tool.Parameters); err == nil {
			decl.Parameters = schema
		}
		result = append(result, decl)
	}
	return result
}

// jsonSchemaToGeminiSchema round-trips a JSON-Schema map into genai's Schema
// struct, which mirrors the same OpenAPI-style field names.
func jsonSchemaToGeminiSchema(params map[string]interface{}) (*genai.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var schema genai.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// parseResponse extracts text and tool calls from a genai response.
func (p *GeminiProvider) parseResponse(resp *genai.GenerateContentResponse) (string, []ToolCall, int, error) {
	if len(resp.Candidates) == 0 {
		return "", nil, 0, fmt.Errorf("no candidates in gemini response")
	}

	var text strings.Builder
	var toolCalls []ToolCall

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				rawArgs, _ := json.Marshal(part.FunctionCall.Args)
				id := part.FunctionCall.ID
				if id == "" {
					id = fmt.Sprintf("call_%d", len(toolCalls))
				}
				toolCalls = append(toolCalls, ToolCall{
					ID:        id,
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
					RawArgs:   string(rawArgs),
				})
			}
		}
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return text.String(), toolCalls, tokens, nil
}
