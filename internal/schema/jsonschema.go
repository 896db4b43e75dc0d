package schema

// JSONSchema converts the document to a JSON Schema object usable for
// validating model output. Every field is optional and nullable: the model
// is asked for the fields, not forced to find them.
func (d *Document) JSONSchema() map[string]any {
	props := make(map[string]any, d.Len())
	for name, spec := range d.Fields() {
		props[name] = spec.jsonSchema()
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func (f *FieldSpec) jsonSchema() map[string]any {
	var out map[string]any
	switch f.Type.Kind {
	case KindList:
		items := map[string]any{}
		if t := kindJSONType(f.Type.Elem); t != "" {
			items["type"] = t
		}
		out = map[string]any{"type": []any{"array", "null"}, "items": items}
	case KindDict:
		out = map[string]any{"type": []any{"object", "null"}}
		if f.Properties.Len() > 0 {
			out["properties"] = f.Properties.JSONSchema()["properties"]
		}
	case KindUnknown:
		out = map[string]any{}
		if f.Properties.Len() > 0 {
			out["type"] = []any{"object", "null"}
			out["properties"] = f.Properties.JSONSchema()["properties"]
		}
	default:
		out = map[string]any{"type": []any{kindJSONType(f.Type.Kind), "null"}}
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	return out
}

func kindJSONType(k Kind) string {
	switch k {
	case KindStr:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindList:
		return "array"
	case KindDict:
		return "object"
	}
	return ""
}
