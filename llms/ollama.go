package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reasoncore/engine/config"
)

// ============================================================================
// OLLAMA PROVIDER IMPLEMENTATION
// ============================================================================

// OllamaProvider implements LLMProvider for a local or remote Ollama server
// using its /api/chat endpoint.
type OllamaProvider struct {
	config  *config.LLMProviderConfig
	client  *http.Client
	baseURL string
}

// OllamaRequest represents the request payload for Ollama's chat endpoint.
type OllamaRequest struct {
	Model      string          `json:"model"`
	Messages   []OllamaMessage `json:"messages"`
	Stream     bool            `json:"stream"`
	Options    *OllamaOptions  `json:"options,omitempty"`
	Tools      []OllamaTool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
	Think      interface{}     `json:"think,omitempty"`
}

// OllamaMessage represents a message in Ollama's chat format.
type OllamaMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []OllamaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolName   string           `json:"tool_name,omitempty"`
}

// OllamaTool represents a tool definition in Ollama format.
type OllamaTool struct {
	Type     string             `json:"type"`
	Function OllamaToolFunction `json:"function"`
}

type OllamaToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// OllamaToolCall represents a tool call in Ollama's response.
type OllamaToolCall struct {
	Type     string                 `json:"type"`
	Function OllamaToolCallFunction `json:"function"`
}

type OllamaToolCallFunction struct {
	Index     int                    `json:"index,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// OllamaOptions holds generation parameters.
type OllamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// OllamaResponse represents a non-streaming response from /api/chat.
type OllamaResponse struct {
	Model           string        `json:"model"`
	Message         OllamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

// OllamaStreamChunk represents one line of a streamed /api/chat response.
type OllamaStreamChunk struct {
	Model           string        `json:"model"`
	Message         OllamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

// NewOllamaProvider creates a new Ollama provider with default settings.
func NewOllamaProvider(model string) *OllamaProvider {
	cfg := &config.LLMProviderConfig{
		Type:        "ollama",
		Model:       model,
		Host:        "http://localhost:11434",
		Temperature: 0.7,
		MaxTokens:   1000,
		Timeout:     60,
	}

	provider, _ := NewOllamaProviderFromConfig(cfg)
	return provider
}

// NewOllamaProviderFromConfig creates a new Ollama provider from config.
func NewOllamaProviderFromConfig(cfg *config.LLMProviderConfig) (*OllamaProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimSuffix(cfg.Host, "/")

	return &OllamaProvider{
		config:  cfg,
		client:  &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		baseURL: baseURL,
	}, nil
}

// WithBaseURL sets the Ollama base URL.
func (p *OllamaProvider) WithBaseURL(url string) *OllamaProvider {
	p.baseURL = strings.TrimSuffix(url, "/")
	p.config.Host = p.baseURL
	return p
}

// Generate generates a response given conversation messages.
func (p *OllamaProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, int, error) {
	request := p.buildRequest(messages, false, tools)

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return "", nil, 0, err
	}

	if response.Error != "" {
		return "", nil, 0, fmt.Errorf("Ollama API error: %s", response.Error)
	}

	text := response.Message.Content
	tokensUsed := response.PromptEvalCount + response.EvalCount

	var toolCalls []ToolCall
	if len(response.Message.ToolCalls) > 0 {
		toolCalls = p.parseToolCalls(response.Message.ToolCalls)
	}

	return text, toolCalls, tokensUsed, nil
}

// GenerateStreaming generates a streaming response given conversation messages.
func (p *OllamaProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	request := p.buildRequest(messages, true, tools)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		if err := p.makeStreamingRequest(ctx, request, outputCh); err != nil {
			outputCh <- StreamChunk{
				Type:  "error",
				Error: err,
			}
		}
	}()

	return outputCh, nil
}

// GetModelName returns the model name.
func (p *OllamaProvider) GetModelName() string {
	return p.config.Model
}

// GetMaxTokens returns the maximum tokens.
func (p *OllamaProvider) GetMaxTokens() int {
	return p.config.MaxTokens
}

// GetTemperature returns the temperature.
func (p *OllamaProvider) GetTemperature() float64 {
	return p.config.Temperature
}

// Close closes the provider.
func (p *OllamaProvider) Close() error {
	return nil
}

// buildRequest converts universal messages and tools into Ollama's wire format.
func (p *OllamaProvider) buildRequest(messages []Message, stream bool, tools []ToolDefinition) OllamaRequest {
	ollamaMessages := make([]OllamaMessage, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == "tool" {
			ollamaMessages = append(ollamaMessages, OllamaMessage{
				Role:     "tool",
				Content:  msg.Content,
				ToolName: msg.Name,
			})
			continue
		}

		ollamaMsg := OllamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		if len(msg.ToolCalls) > 0 {
			ollamaMsg.ToolCalls = make([]OllamaToolCall, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = make(map[string]interface{})
				}
				ollamaMsg.ToolCalls[i] = OllamaToolCall{
					Type: "function",
					Function: OllamaToolCallFunction{
						Index:     i,
						Name:      tc.Name,
						Arguments: args,
					},
				}
			}
		}

		ollamaMessages = append(ollamaMessages, ollamaMsg)
	}

	request := OllamaRequest{
		Model:    p.config.Model,
		Messages: ollamaMessages,
		Stream:   stream,
	}

	if p.config.Temperature > 0 || p.config.MaxTokens > 0 {
		opts := &OllamaOptions{}
		if p.config.Temperature > 0 {
			opts.Temperature = p.config.Temperature
		}
		if p.config.MaxTokens > 0 {
			opts.NumPredict = p.config.MaxTokens
		}
		request.Options = opts
	}

	if isThinkingCapableModel(p.config.Model) {
		request.Think = true
	}

	if len(tools) > 0 {
		request.Tools = convertToOllamaTools(tools)
		request.ToolChoice = "auto"
	}

	return request
}

// isThinkingCapableModel reports whether a model name matches a known
// thinking-capable Ollama model family.
func isThinkingCapableModel(modelName string) bool {
	modelLower := strings.ToLower(modelName)

	excluded := []string{"qwen3-coder", "qwen2-coder"}
	for _, e := range excluded {
		if strings.Contains(modelLower, e) {
			return false
		}
	}

	thinkingFamilies := []string{"qwen3", "deepseek-r1", "deepseek-v3", "gpt-oss"}
	for _, family := range thinkingFamilies {
		if strings.Contains(modelLower, family) {
			return true
		}
	}
	return false
}

func convertToOllamaTools(tools []ToolDefinition) []OllamaTool {
	result := make([]OllamaTool, len(tools))
	for i, tool := range tools {
		result[i] = OllamaTool{
			Type: "function",
			Function: OllamaToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		}
	}
	return result
}

func (p *OllamaProvider) parseToolCalls(ollamaToolCalls []OllamaToolCall) []ToolCall {
	toolCalls := make([]ToolCall, 0, len(ollamaToolCalls))
	for i, tc := range ollamaToolCalls {
		args := tc.Function.Arguments
		if args == nil {
			args = make(map[string]interface{})
		}
		rawArgs, _ := json.Marshal(args)

		var id string
		if tc.Function.Index >= 0 {
			id = fmt.Sprintf("call_%d_%s", tc.Function.Index, tc.Function.Name)
		} else {
			id = fmt.Sprintf("call_%d", i)
		}

		toolCalls = append(toolCalls, ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: args,
			RawArgs:   string(rawArgs),
		})
	}
	return toolCalls
}

// makeRequest makes a non-streaming request to Ollama's /api/chat endpoint.
func (p *OllamaProvider) makeRequest(ctx context.Context, request OllamaRequest) (*OllamaResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response OllamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}

// makeStreamingRequest makes a streaming request to Ollama's /api/chat endpoint.
// Ollama streams newline-delimited JSON, not SSE.
func (p *OllamaProvider) makeStreamingRequest(ctx context.Context, request OllamaRequest, outputCh chan<- StreamChunk) error {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make streaming request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	reader := bufio.NewReader(resp.Body)
	toolCallsMap := make(map[int]*OllamaToolCall)
	var totalTokens int

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var chunk OllamaStreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}

		if chunk.Error != "" {
			return fmt.Errorf("Ollama API error: %s", chunk.Error)
		}

		if chunk.Message.Content != "" {
			outputCh <- StreamChunk{Type: "text", Text: chunk.Message.Content}
		}

		for _, tc := range chunk.Message.ToolCalls {
			idx := tc.Function.Index
			if idx < 0 {
				idx = len(toolCallsMap)
			}
			if existing, ok := toolCallsMap[idx]; ok {
				for k, v := range tc.Function.Arguments {
					existing.Function.Arguments[k] = v
				}
			} else {
				tcCopy := tc
				toolCallsMap[idx] = &tcCopy
			}
		}

		if chunk.Done {
			totalTokens = chunk.PromptEvalCount + chunk.EvalCount

			if len(toolCallsMap) > 0 {
				accumulated := make([]OllamaToolCall, 0, len(toolCallsMap))
				for i := 0; i < len(toolCallsMap); i++ {
					if tc, ok := toolCallsMap[i]; ok {
						accumulated = append(accumulated, *tc)
					}
				}
				for _, tc := range p.parseToolCalls(accumulated) {
					tc := tc
					outputCh <- StreamChunk{Type: "tool_call", ToolCall: &tc}
				}
			}

			outputCh <- StreamChunk{Type: "done", Tokens: totalTokens}
			break
		}
	}

	return nil
}
