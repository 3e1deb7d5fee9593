package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/invopop/jsonschema"
)

// ErrUnrepresentable is returned when a type cannot be expressed without
// JSON-schema union constructs.
var ErrUnrepresentable = errors.New("type cannot be expressed as a single JSON type")

// Render builds the JSON schema clients see for r. Nested records are
// inlined; unions collapse to their only non-null branch.
func Render(r *Record) (*jsonschema.Schema, error) {
	return renderRecord(r, make(map[*Record]bool))
}

func renderRecord(r *Record, inProgress map[*Record]bool) (*jsonschema.Schema, error) {
	if inProgress[r] {
		return nil, fmt.Errorf("record %s references itself: %w", r.Name, ErrUnrepresentable)
	}
	inProgress[r] = true
	defer delete(inProgress, r)

	s := &jsonschema.Schema{
		Type:        "object",
		Title:       r.Name,
		Description: r.Description,
		Properties:  jsonschema.NewProperties(),
	}
	if r.Strict {
		s.AdditionalProperties = jsonschema.FalseSchema
	}
	for _, f := range r.Fields {
		ps, err := renderType(f.Type, inProgress)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", r.Name, f.Name, err)
		}
		if f.Description != "" {
			ps.Description = f.Description
		}
		if f.Default != nil {
			ps.Default = f.Default
		}
		if f.Min != nil {
			ps.Minimum = jsonNumber(*f.Min)
		}
		if f.Max != nil {
			ps.Maximum = jsonNumber(*f.Max)
		}
		s.Properties.Set(f.Name, ps)
	}
	s.Required = r.RequiredNames()
	return s, nil
}

func renderType(t *Type, inProgress map[*Record]bool) (*jsonschema.Schema, error) {
	if t == nil {
		return nil, fmt.Errorf("missing type: %w", ErrUnrepresentable)
	}
	switch t.Kind {
	case KindString, KindNumber, KindInteger, KindBoolean:
		return &jsonschema.Schema{Type: t.Kind.String()}, nil
	case KindObject:
		if t.Record == nil {
			return &jsonschema.Schema{Type: "object"}, nil
		}
		return renderRecord(t.Record, inProgress)
	case KindArray:
		items, err := renderType(t.Elem, inProgress)
		if err != nil {
			return nil, err
		}
		return &jsonschema.Schema{Type: "array", Items: items}, nil
	case KindUnion:
		branches := make([]*Type, 0, len(t.Variants))
		for _, v := range t.Variants {
			if v.Kind != KindNull {
				branches = append(branches, v)
			}
		}
		if len(branches) != 1 {
			return nil, fmt.Errorf("union of %d non-null types: %w", len(branches), ErrUnrepresentable)
		}
		return renderType(branches[0], inProgress)
	}
	return nil, fmt.Errorf("%s: %w", t.Kind, ErrUnrepresentable)
}

func jsonNumber(f float64) json.Number {
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// ToMap returns the generic JSON form of a rendered schema.
func ToMap(s *jsonschema.Schema) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return out, nil
}
