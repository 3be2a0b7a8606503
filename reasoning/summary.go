package reasoning

import (
	"fmt"
	"strings"
)

// ToolOutcome is one tool's result as carried into summary synthesis.
type ToolOutcome struct {
	Name    string
	Success bool
	Data    map[string]interface{}
	Error   string
}

// Formatter extracts a salient natural-language fragment from a
// successful tool's data payload, e.g. "repository 'foo' was added".
type Formatter func(data map[string]interface{}) string

// SummaryFormatters maps well-known tool names to field-extraction
// functions, with a generic fallback for anything else.
var SummaryFormatters = map[string]Formatter{
	"add_repository": func(data map[string]interface{}) string {
		if name, ok := data["name"].(string); ok && name != "" {
			return fmt.Sprintf("repository '%s' was added", name)
		}
		if url, ok := data["url"].(string); ok && url != "" {
			return fmt.Sprintf("repository from '%s' was added", url)
		}
		return "repository was added"
	},
	"search_code": func(data map[string]interface{}) string {
		if query, ok := data["query"].(string); ok && query != "" {
			return fmt.Sprintf("code search for '%s' completed", query)
		}
		return "code search completed"
	},
	"edit_file": func(data map[string]interface{}) string {
		if path, ok := data["path"].(string); ok && path != "" {
			return fmt.Sprintf("file '%s' was edited", path)
		}
		return "file was edited"
	},
	"analyze_input": func(data map[string]interface{}) string {
		return "input was analyzed"
	},
}

func formatOutcome(o ToolOutcome) string {
	if fn, ok := SummaryFormatters[o.Name]; ok {
		return fn(o.Data)
	}
	return fmt.Sprintf("'%s' completed successfully", o.Name)
}

// Summarize groups outcomes into successful/failed and renders the
// "Okay, I've finished those tasks." summary, terminated with a blank
// line, per the per-tool formatter rules.
func Summarize(outcomes []ToolOutcome) string {
	var successful, failed []string
	for _, o := range outcomes {
		if o.Success {
			successful = append(successful, formatOutcome(o))
		} else {
			msg := o.Error
			if msg == "" {
				msg = "unknown error"
			}
			failed = append(failed, fmt.Sprintf("'%s' failed: %s", o.Name, msg))
		}
	}

	var parts []string
	if len(successful) > 0 {
		parts = append(parts, "Successfully completed: "+strings.Join(successful, ", "))
	}
	if len(failed) > 0 {
		parts = append(parts, "Failed actions: "+strings.Join(failed, ", "))
	}

	if len(parts) == 0 {
		return "The requested actions were processed.\n\n"
	}
	return fmt.Sprintf("Okay, I've finished those tasks. %s\n\n", strings.Join(parts, ". "))
}
