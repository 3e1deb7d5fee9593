package schema

import (
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

var allowedTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"object":  true,
	"array":   true,
}

// CheckCompatible reports every way s breaks the input-schema rules strict
// MCP clients enforce: an object root with additionalProperties false, a
// non-empty required list naming declared properties, no union keywords, no
// multi-type or integer types.
func CheckCompatible(s *jsonschema.Schema) error {
	m, err := ToMap(s)
	if err != nil {
		return err
	}
	return CheckCompatibleMap(m)
}

// CheckCompatibleMap applies CheckCompatible to a decoded schema.
func CheckCompatibleMap(m map[string]any) error {
	var errs []error
	if m["type"] != "object" {
		errs = append(errs, fmt.Errorf("root type is %v, want object", m["type"]))
	}
	if ap, ok := m["additionalProperties"].(bool); !ok || ap {
		errs = append(errs, errors.New("root must set additionalProperties to false"))
	}
	props, _ := m["properties"].(map[string]any)
	if len(props) > 0 {
		required, _ := m["required"].([]any)
		if len(required) == 0 {
			errs = append(errs, errors.New("schema with properties must declare required fields"))
		}
		for _, r := range required {
			name, _ := r.(string)
			if _, ok := props[name]; !ok {
				errs = append(errs, fmt.Errorf("required field %q is not a declared property", name))
			}
		}
	}
	walkSchema(m, "$", &errs)
	return errors.Join(errs...)
}

func walkSchema(node map[string]any, path string, errs *[]error) {
	switch t := node["type"].(type) {
	case string:
		if !allowedTypes[t] {
			*errs = append(*errs, fmt.Errorf("%s: type %q not allowed", path, t))
		}
	case []any:
		*errs = append(*errs, fmt.Errorf("%s: multi-type %v not allowed", path, t))
	}
	for _, kw := range []string{"oneOf", "anyOf", "allOf"} {
		if _, ok := node[kw]; ok {
			*errs = append(*errs, fmt.Errorf("%s: %s not allowed", path, kw))
		}
	}
	if props, ok := node["properties"].(map[string]any); ok {
		for name, p := range props {
			if child, ok := p.(map[string]any); ok {
				walkSchema(child, path+"."+name, errs)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		walkSchema(items, path+"[]", errs)
	}
	if ap, ok := node["additionalProperties"].(map[string]any); ok {
		walkSchema(ap, path+"{}", errs)
	}
	if defs, ok := node["$defs"].(map[string]any); ok {
		for name, d := range defs {
			if child, ok := d.(map[string]any); ok {
				walkSchema(child, "$defs."+name, errs)
			}
		}
	}
}

// HasIntegerType reports whether any node of the decoded schema declares
// type "integer".
func HasIntegerType(node any) bool {
	switch n := node.(type) {
	case map[string]any:
		if n["type"] == "integer" {
			return true
		}
		for _, v := range n {
			if HasIntegerType(v) {
				return true
			}
		}
	case []any:
		for _, v := range n {
			if HasIntegerType(v) {
				return true
			}
		}
	}
	return false
}
