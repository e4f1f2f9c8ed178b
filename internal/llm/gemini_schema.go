package llm

import "google.golang.org/genai"

// geminiUnsupportedFields are JSON Schema keywords the Gemini API rejects.
var geminiUnsupportedFields = []string{
	"$schema",
	"format",
	"exclusiveMinimum",
	"exclusiveMaximum",
	"minLength",
	"maxLength",
	"minItems",
	"maxItems",
	"uniqueItems",
	"pattern",
	"default",
	"examples",
	"const",
	"additionalProperties",
	"title",
}

// normalizeSchemaForGemini returns a copy of schema without keywords Gemini
// rejects. Required/optional distinctions are preserved.
func normalizeSchemaForGemini(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}
	return normalizeGeminiSchemaRecursive(deepCopyMap(schema))
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		result[k] = deepCopyValue(v)
	}
	return result
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

func normalizeGeminiSchemaRecursive(schema map[string]interface{}) map[string]interface{} {
	for _, field := range geminiUnsupportedFields {
		delete(schema, field)
	}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		for key, val := range props {
			if propSchema, ok := val.(map[string]interface{}); ok {
				props[key] = normalizeGeminiSchemaRecursive(propSchema)
			}
		}
	}

	if items, ok := schema["items"].(map[string]interface{}); ok {
		schema["items"] = normalizeGeminiSchemaRecursive(items)
	}

	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		if arr, ok := schema[key].([]interface{}); ok {
			for i, item := range arr {
				if itemSchema, ok := item.(map[string]interface{}); ok {
					arr[i] = normalizeGeminiSchemaRecursive(itemSchema)
				}
			}
		}
	}

	return schema
}

func schemaToGenai(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}

	genSchema := &genai.Schema{
		Type:        schemaTypeFromValue(schema),
		Description: stringField(schema, "description"),
		Required:    requiredFields(schema),
	}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		genSchema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]interface{}); ok {
				genSchema.Properties[name] = schemaToGenai(propMap)
			}
		}
	}

	if items, ok := schema["items"].(map[string]interface{}); ok {
		genSchema.Items = schemaToGenai(items)
	}

	if enum, ok := schema["enum"].([]interface{}); ok {
		for _, v := range enum {
			if s, ok := v.(string); ok {
				genSchema.Enum = append(genSchema.Enum, s)
			}
		}
	}

	return genSchema
}

// schemaTypeFromValue maps a JSON Schema type to Gemini's enum. Unknown or
// missing types fall back to the permissive TypeUnspecified.
func schemaTypeFromValue(schema map[string]interface{}) genai.Type {
	if t, ok := schema["type"].(string); ok {
		switch t {
		case "string":
			return genai.TypeString
		case "integer":
			return genai.TypeInteger
		case "number":
			return genai.TypeNumber
		case "boolean":
			return genai.TypeBoolean
		case "array":
			return genai.TypeArray
		case "object":
			return genai.TypeObject
		}
	}
	if _, ok := schema["properties"]; ok {
		return genai.TypeObject
	}
	return genai.TypeUnspecified
}

func requiredFields(schema map[string]interface{}) []string {
	if required, ok := schema["required"].([]string); ok {
		return required
	}
	if required, ok := schema["required"].([]interface{}); ok {
		result := make([]string, 0, len(required))
		for _, r := range required {
			if s, ok := r.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

func stringField(schema map[string]interface{}, key string) string {
	if v, ok := schema[key].(string); ok {
		return v
	}
	return ""
}
