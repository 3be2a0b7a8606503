package tools

import (
	"context"
	"strings"
)

// AnalyzeInputTool is the environment-provided tool the reasoning loop
// submits as its first orchestration request of every session: a cheap,
// local pass over the user's text that surfaces signal (rough intent
// category, referenced file paths) before the model is ever called.
type AnalyzeInputTool struct{}

// NewAnalyzeInputTool creates the analyze_input tool.
func NewAnalyzeInputTool() *AnalyzeInputTool {
	return &AnalyzeInputTool{}
}

func (t *AnalyzeInputTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	input, _ := args["input"].(string)
	contextSummary, _ := args["context"].(string)

	category := classifyInputCategory(input)
	paths := extractLikelyPaths(input)

	data := map[string]interface{}{
		"category":        category,
		"length":          len(input),
		"referenced_paths": paths,
	}
	if contextSummary != "" {
		data["has_context"] = true
	}

	return ToolResult{
		Success:  true,
		Output:   data,
		ToolName: "analyze_input",
	}, nil
}

func (t *AnalyzeInputTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "analyze_input",
		Description: "Performs a local pass over the user's request text, surfacing a rough intent category and any referenced file paths before the model is invoked",
		Parameters: []ToolParameter{
			{Name: "input", Type: "string", Description: "The user's request text", Required: true},
			{Name: "context", Type: "string", Description: "Synthesized continuation context, if this is a continued session", Required: false},
		},
		ServerURL: "local",
	}
}

func (t *AnalyzeInputTool) GetName() string        { return "analyze_input" }
func (t *AnalyzeInputTool) GetDescription() string { return "Local pre-analysis of the user's request text" }

func classifyInputCategory(input string) string {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "fix") || strings.Contains(lower, "bug") || strings.Contains(lower, "error"):
		return "bugfix"
	case strings.Contains(lower, "test"):
		return "testing"
	case strings.Contains(lower, "refactor"):
		return "refactor"
	case strings.Contains(lower, "search") || strings.Contains(lower, "find") || strings.Contains(lower, "where"):
		return "search"
	case strings.Contains(lower, "explain") || strings.Contains(lower, "what") || strings.Contains(lower, "how"):
		return "question"
	default:
		return "general"
	}
}

// extractLikelyPaths picks out whitespace-delimited tokens that look like
// file paths (contain a slash or a recognizable source extension).
func extractLikelyPaths(input string) []string {
	var paths []string
	for _, token := range strings.Fields(input) {
		token = strings.Trim(token, `,.;:"'`)
		if strings.Contains(token, "/") || hasSourceExtension(token) {
			paths = append(paths, token)
		}
	}
	return paths
}

func hasSourceExtension(token string) bool {
	for _, ext := range []string{".go", ".py", ".js", ".ts", ".rs", ".java", ".md", ".yaml", ".yml", ".json"} {
		if strings.HasSuffix(token, ext) {
			return true
		}
	}
	return false
}
