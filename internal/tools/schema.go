package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compileSchema turns the declarative param specs into a compiled JSON
// Schema. Unknown extra properties are tolerated; type errors and missing
// required params are not.
func compileSchema(name string, params []ParamSpec) (*jsonschema.Schema, error) {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter with empty name")
		}
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return jsonschema.CompileString(name+".schema.json", string(raw))
}

// validateArgs checks the argument bag against the compiled schema and
// returns a single-line reason on failure.
func validateArgs(schema *jsonschema.Schema, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	if err := schema.Validate(normalizeForSchema(args)); err != nil {
		return fmt.Errorf("%s", flattenValidationError(err))
	}
	return nil
}

// normalizeForSchema round-trips the bag through JSON typing so values built
// in Go code (int, []string) validate the same as decoded model output.
func normalizeForSchema(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}

func flattenValidationError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	// Walk to the deepest cause for the most specific message.
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	if loc == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}

// applyDefaults fills declared defaults for absent optional params, leaving
// the caller's map untouched.
func applyDefaults(params []ParamSpec, args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+2)
	for k, v := range args {
		out[k] = v
	}
	for _, p := range params {
		if p.Default == nil {
			continue
		}
		if _, ok := out[p.Name]; !ok {
			out[p.Name] = p.Default
		}
	}
	return out
}
