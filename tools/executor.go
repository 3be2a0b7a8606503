package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/reasoncore/engine/orchestrator"
)

// RegistryExecutor adapts a ToolRegistry to orchestrator.Executor, the
// contract the reasoning loop drives tool calls through.
type RegistryExecutor struct {
	registry *ToolRegistry
}

// NewRegistryExecutor wraps reg as an orchestrator.Executor.
func NewRegistryExecutor(reg *ToolRegistry) *RegistryExecutor {
	return &RegistryExecutor{registry: reg}
}

func (e *RegistryExecutor) Execute(ctx context.Context, name string, args map[string]interface{}) (orchestrator.ToolResult, error) {
	start := time.Now()
	result, err := e.registry.ExecuteTool(ctx, name, args)
	elapsed := uint64(time.Since(start).Milliseconds())

	data := result.Output
	if data == nil && result.Content != "" {
		data = map[string]interface{}{"content": result.Content}
	}

	return orchestrator.ToolResult{
		Success:         result.Success,
		Data:            data,
		Error:           result.Error,
		ExecutionTimeMs: elapsed,
		Metadata:        result.Metadata,
	}, err
}

func (e *RegistryExecutor) AvailableTools() []orchestrator.ToolInfo {
	infos := e.registry.ListTools()
	out := make([]orchestrator.ToolInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, orchestrator.ToolInfo{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  parametersToJSONSchema(info.Parameters),
		})
	}
	return out
}

// parametersToJSONSchema renders the tool's declared parameters as a
// JSON-Schema object document, the form orchestrator.ToolInfo.Parameters
// and llms.ToolDefinition.Parameters both expect. Tool parameters are
// discovered at runtime (MCP servers, config-declared tools) rather than
// described by a fixed Go struct, so the schema is assembled field-by-field
// on jsonschema.Schema instead of reflecting over a type parameter.
func parametersToJSONSchema(params []ToolParameter) []byte {
	properties := orderedmap.New[string, *jsonschema.Schema]()
	var required []string
	for _, p := range params {
		prop := &jsonschema.Schema{
			Type:        p.Type,
			Description: p.Description,
			Default:     p.Default,
		}
		for _, v := range p.Enum {
			prop.Enum = append(prop.Enum, v)
		}
		if p.Items != nil {
			itemsData, err := json.Marshal(p.Items)
			if err == nil {
				items := &jsonschema.Schema{}
				if json.Unmarshal(itemsData, items) == nil {
					prop.Items = items
				}
			}
		}
		properties.Set(p.Name, prop)
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	return data
}
