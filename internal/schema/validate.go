package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Error types reported in FieldError.Type.
const (
	ErrMissing        = "missing"
	ErrExtraForbidden = "extra_forbidden"
	ErrType           = "type_error"
	ErrIntFromFloat   = "int_from_float"
	ErrGreaterEqual   = "greater_than_equal"
	ErrLessEqual      = "less_than_equal"
	ErrUnion          = "union_mismatch"
)

// FieldError is a single validation failure. Loc holds field names
// (string) and list indexes (int) from the root of the arguments.
type FieldError struct {
	Loc  []any
	Type string
	Msg  string
}

// Location renders Loc dotted, e.g. "parameters.0.name".
func (e FieldError) Location() string {
	parts := make([]string, 0, len(e.Loc))
	for _, p := range e.Loc {
		s := fmt.Sprint(p)
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

// ValidationError collects every FieldError found in one pass.
type ValidationError struct {
	Record string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s) for %s: %s", len(e.Errors), e.Record, e.Summary())
}

// Summary joins "<location>: <message>" pairs with "; ".
func (e *ValidationError) Summary() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if loc := fe.Location(); loc != "" {
			msgs = append(msgs, loc+": "+fe.Msg)
		} else {
			msgs = append(msgs, fe.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}

// Missing returns the sorted, de-duplicated names found in the locations
// of missing-field errors.
func (e *ValidationError) Missing() []string {
	seen := make(map[string]bool)
	for _, fe := range e.Errors {
		if fe.Type != ErrMissing {
			continue
		}
		for _, p := range fe.Loc {
			if s, ok := p.(string); ok && s != "" {
				seen[s] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Validate checks args against r and returns the coerced values with
// defaults filled for omitted optional fields.
func Validate(r *Record, args map[string]any) (map[string]any, error) {
	var errs []FieldError
	out := validateRecord(r, args, nil, &errs)
	if len(errs) > 0 {
		return nil, &ValidationError{Record: r.Name, Errors: errs}
	}
	return out, nil
}

func validateRecord(r *Record, in map[string]any, loc []any, errs *[]FieldError) map[string]any {
	out := make(map[string]any, len(r.Fields))
	for _, f := range r.Fields {
		at := appendLoc(loc, f.Name)
		v, ok := in[f.Name]
		if !ok {
			if f.Required {
				*errs = append(*errs, FieldError{Loc: at, Type: ErrMissing, Msg: "Field required"})
				continue
			}
			out[f.Name] = cloneValue(f.Default)
			continue
		}
		cv, ok := validateValue(f.Type, v, at, errs)
		if !ok {
			continue
		}
		if !checkBounds(f, cv, at, errs) {
			continue
		}
		out[f.Name] = cv
	}

	if r.Strict {
		extras := make([]string, 0)
		for k := range in {
			if _, declared := r.Field(k); !declared {
				extras = append(extras, k)
			}
		}
		sort.Strings(extras)
		for _, k := range extras {
			*errs = append(*errs, FieldError{Loc: appendLoc(loc, k), Type: ErrExtraForbidden, Msg: "Extra inputs are not permitted"})
		}
	}
	return out
}

// validateValue reports false when it appended at least one error.
func validateValue(t *Type, v any, loc []any, errs *[]FieldError) (any, bool) {
	fail := func(typ, msg string) (any, bool) {
		*errs = append(*errs, FieldError{Loc: loc, Type: typ, Msg: msg})
		return nil, false
	}

	if t.Coerce == CoerceInteger && v == nil {
		// null is accepted only by a surrounding nullable union.
		return fail(ErrType, "Input should be a valid number")
	}

	switch t.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return fail(ErrType, "Input should be a valid string")
		}
		return s, true

	case KindNumber, KindInteger:
		if t.Kind == KindInteger || t.Coerce == CoerceInteger {
			n, typ, msg := toInteger(v)
			if typ != "" {
				return fail(typ, msg)
			}
			return n, true
		}
		f, ok := toFloat(v)
		if !ok {
			return fail(ErrType, "Input should be a valid number")
		}
		return f, true

	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return fail(ErrType, "Input should be a valid boolean")
		}
		return b, true

	case KindNull:
		if v != nil {
			return fail(ErrType, "Input should be null")
		}
		return nil, true

	case KindObject:
		m, ok := v.(map[string]any)
		if !ok {
			return fail(ErrType, "Input should be a valid dictionary or object")
		}
		if t.Record == nil {
			return cloneValue(m), true
		}
		before := len(*errs)
		out := validateRecord(t.Record, m, loc, errs)
		return out, len(*errs) == before

	case KindArray:
		items, ok := v.([]any)
		if !ok {
			return fail(ErrType, "Input should be a valid list")
		}
		before := len(*errs)
		out := make([]any, 0, len(items))
		for i, item := range items {
			cv, ok := validateValue(t.Elem, item, appendLoc(loc, i), errs)
			if ok {
				out = append(out, cv)
			}
		}
		return out, len(*errs) == before

	case KindUnion:
		for _, variant := range t.Variants {
			var sub []FieldError
			if cv, ok := validateValue(variant, v, loc, &sub); ok {
				return cv, true
			}
		}
		return fail(ErrUnion, "Input does not match any allowed type")
	}
	return fail(ErrType, "Unsupported field type "+t.Kind.String())
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// toInteger returns an error type and message instead of an error value so
// callers can record it as a FieldError directly.
func toInteger(v any) (int64, string, string) {
	switch n := v.(type) {
	case int:
		return int64(n), "", ""
	case int32:
		return int64(n), "", ""
	case int64:
		return n, "", ""
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, "", ""
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, ErrType, "Input should be a valid number"
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, ErrType, "Input should be a valid integer"
	}
	if f != math.Trunc(f) {
		return 0, ErrIntFromFloat, "Input should be a valid integer, got a number with a fractional part"
	}
	return int64(f), "", ""
}

func checkBounds(f Field, v any, loc []any, errs *[]FieldError) bool {
	if f.Min == nil && f.Max == nil {
		return true
	}
	var n float64
	switch x := v.(type) {
	case int64:
		n = float64(x)
	case float64:
		n = x
	default:
		return true
	}
	if f.Min != nil && n < *f.Min {
		*errs = append(*errs, FieldError{Loc: loc, Type: ErrGreaterEqual, Msg: "Input should be greater than or equal to " + formatBound(*f.Min)})
		return false
	}
	if f.Max != nil && n > *f.Max {
		*errs = append(*errs, FieldError{Loc: loc, Type: ErrLessEqual, Msg: "Input should be less than or equal to " + formatBound(*f.Max)})
		return false
	}
	return true
}

func formatBound(b float64) string {
	return strconv.FormatFloat(b, 'g', -1, 64)
}

func appendLoc(loc []any, part any) []any {
	out := make([]any, len(loc), len(loc)+1)
	copy(out, loc)
	return append(out, part)
}

// cloneValue deep-copies maps and slices so defaults are never shared
// between calls.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}
