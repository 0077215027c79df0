package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema describes every body the extraction service may return
// with a 2xx status, successful or not.
func responseSchema() map[string]any {
	optionalString := map[string]any{"type": []string{"string", "null"}}
	return map[string]any{
		"type":     "object",
		"required": []string{"status"},
		"properties": map[string]any{
			"status":   map[string]any{"type": "string"},
			"filename": optionalString,
			"language": optionalString,
			"template": optionalString,
			"message":  optionalString,
			"page_count": map[string]any{
				"type":    []string{"integer", "string", "null"},
				"minimum": 0,
			},
			"filled_form": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"type": []string{"string", "number", "boolean", "null"},
				},
			},
		},
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("response.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validatePayload(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
