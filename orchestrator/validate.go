package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateParams compiles schema.Document (a JSON-Schema document) and
// validates args against it, then applies the additional "at least one
// of" constraint some tools need beyond what a oneOf clause expresses
// cleanly (e.g. "path or pattern, but at least one").
func validateParams(schema *ParamSchema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	if len(schema.Document) > 0 {
		compiler := jsonschema.NewCompiler()
		const resourceName = "schema.json"
		if err := compiler.AddResource(resourceName, bytes.NewReader(schema.Document)); err != nil {
			return fmt.Errorf("compiling parameter schema: %w", err)
		}
		compiled, err := compiler.Compile(resourceName)
		if err != nil {
			return fmt.Errorf("compiling parameter schema: %w", err)
		}

		// jsonschema validates decoded JSON values (map[string]interface{}
		// with json.Number for numerics); round-trip through encoding/json
		// to get that canonical shape from our loosely-typed args map.
		var decoded interface{}
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encoding arguments: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return fmt.Errorf("decoding arguments: %w", err)
		}

		if err := compiled.Validate(decoded); err != nil {
			return fmt.Errorf("schema validation: %w", err)
		}
	}

	if len(schema.AtLeastOneOf) > 0 {
		satisfied := false
		for _, field := range schema.AtLeastOneOf {
			if v, ok := args[field]; ok && v != nil {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return fmt.Errorf("at least one of %v must be provided", schema.AtLeastOneOf)
		}
	}

	return nil
}
