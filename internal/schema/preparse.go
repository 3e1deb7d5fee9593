package schema

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// PreParse decodes string arguments that carry JSON for fields not typed as
// string, e.g. a list sent as "[1, 2]". Scalars decoded from a string are
// left alone so "123" is not silently turned into a number here. Strings
// that look like JSON containers but fail to decode are passed through
// jsonrepair once before giving up.
func PreParse(r *Record, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, f := range r.Fields {
		raw, ok := args[f.Name].(string)
		if !ok || acceptsString(f.Type) {
			continue
		}
		decoded, ok := decodeJSONText(raw)
		if !ok {
			continue
		}
		switch decoded.(type) {
		case string, float64, json.Number:
			continue
		}
		out[f.Name] = decoded
	}
	return out
}

func acceptsString(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindString:
		return true
	case KindUnion:
		for _, v := range t.Variants {
			if acceptsString(v) {
				return true
			}
		}
	}
	return false
}

func decodeJSONText(raw string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, true
	}
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, false
	}
	return v, true
}
